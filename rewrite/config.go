package rewrite

import (
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Policy decides how many successors a step keeps
type Policy string

const (
	// FirstMatch keeps the first result of the first rule that applies
	FirstMatch Policy = "first"
	// AllMatches keeps every result of every rule that applies
	AllMatches Policy = "all"
)

type Config struct {
	// Bound is how many steps Rewrite takes at most. Negative means unbounded.
	Bound int `validate:"gte=-1"`
	// Depth is how many steps Search explores from the initial state. Negative means unbounded.
	Depth  int    `validate:"gte=-1"`
	Policy Policy `validate:"oneof=first all"`
	// DeterministicFunctions checks every function rule that applies to a call
	// and reports the ones that disagree. Otherwise the first result wins.
	DeterministicFunctions bool
	// CompileOnly keeps unification results without asking the decision procedure
	CompileOnly bool
	Parallelism int `validate:"min=1,max=1024"`
	// Audit names a rule the index must select for every configuration
	Audit string
}

var validate = validator.New()

func DefaultConfig() Config {
	return Config{
		Bound:       -1,
		Depth:       -1,
		Policy:      FirstMatch,
		Parallelism: min(runtime.GOMAXPROCS(0), 1024),
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid rewrite config")
	}
	return nil
}
