package definition

import (
	"fmt"
	"strings"

	"github.com/cottand/ksym/builtins"
	"github.com/cottand/ksym/term"
	"github.com/hashicorp/go-set/v3"
)

type LookupKind uint8

const (
	MapLookup LookupKind = iota
	SetLookup
	ListLookup
)

func (k LookupKind) String() string {
	switch k {
	case SetLookup:
		return "set"
	case ListLookup:
		return "list"
	default:
		return "map"
	}
}

// Lookup is a side equality on a data structure: Base[Key] = Value for maps
// and lists, Key in Base for sets
type Lookup struct {
	Kind  LookupKind
	Base  term.Term
	Key   term.Term
	Value term.Term
}

type Attributes struct {
	Heat   bool
	Cool   bool
	Owise  bool
	Stream Stream
	Extra  map[string]string
}

// Rule is LHS => RHS requires Requires ensures Ensures. Requires and
// Ensures are nil when they are trivially true.
type Rule struct {
	Ordinal    int
	Label      string
	LHS        term.Term
	RHS        term.Term
	Requires   term.Term
	Ensures    term.Term
	Lookups    []Lookup
	Attributes Attributes

	lookupCount int
}

// FunctionLabel is the defined function when r is a function rule, nil otherwise
func (r *Rule) FunctionLabel() *term.KLabel {
	if app, ok := r.LHS.(*term.KApply); ok && app.Label().IsFunction() {
		return app.Label()
	}
	return nil
}

// LookupCount is how many buffered stream elements r consumes at most
func (r *Rule) LookupCount() int { return r.lookupCount }

// LookupEqualities expresses the lookups of r as pairs of terms that must be equal
func (r *Rule) LookupEqualities(reg *term.Registry) [][2]term.Term {
	eqs := make([][2]term.Term, 0, len(r.Lookups))
	for _, l := range r.Lookups {
		switch l.Kind {
		case MapLookup:
			eqs = append(eqs, [2]term.Term{builtins.Call(reg, builtins.LabelMapLookup, l.Base, l.Key), l.Value})
		case SetLookup:
			eqs = append(eqs, [2]term.Term{builtins.Call(reg, builtins.LabelSetIn, l.Key, l.Base), reg.Bool(true)})
		case ListLookup:
			eqs = append(eqs, [2]term.Term{builtins.Call(reg, builtins.LabelListGet, l.Base, l.Key), l.Value})
		}
	}
	return eqs
}

// Variables returns every variable of r
func (r *Rule) Variables() *set.Set[term.Variable] {
	vars := set.New[term.Variable](0)
	for _, t := range r.terms() {
		term.CollectVariables(t, vars)
	}
	return vars
}

func (r *Rule) terms() []term.Term {
	ts := []term.Term{r.LHS, r.RHS}
	for _, t := range []term.Term{r.Requires, r.Ensures} {
		if t != nil {
			ts = append(ts, t)
		}
	}
	for _, l := range r.Lookups {
		for _, t := range []term.Term{l.Base, l.Key, l.Value} {
			if t != nil {
				ts = append(ts, t)
			}
		}
	}
	return ts
}

// Renamed returns a copy of r whose variables are fresh anonymous variables,
// so that they cannot clash with the variables of the term being rewritten
func (r *Rule) Renamed(reg *term.Registry) *Rule {
	renaming := make(map[term.Variable]term.Variable)
	for v := range r.Variables().Items() {
		renaming[v] = reg.Var(reg.FreshName(v.Name()), v.Sort())
	}
	rename := func(t term.Term) term.Term {
		if t == nil {
			return nil
		}
		return reg.Rename(t, renaming)
	}
	renamed := *r
	renamed.LHS = rename(r.LHS)
	renamed.RHS = rename(r.RHS)
	renamed.Requires = rename(r.Requires)
	renamed.Ensures = rename(r.Ensures)
	renamed.Lookups = make([]Lookup, len(r.Lookups))
	for i, l := range r.Lookups {
		renamed.Lookups[i] = Lookup{Kind: l.Kind, Base: rename(l.Base), Key: rename(l.Key), Value: rename(l.Value)}
	}
	return &renamed
}

func (r *Rule) String() string {
	sb := &strings.Builder{}
	if r.Label != "" {
		sb.WriteString("[" + r.Label + "] ")
	}
	sb.WriteString(fmt.Sprintf("%v => %v", r.LHS, r.RHS))
	if r.Requires != nil {
		sb.WriteString(fmt.Sprintf(" requires %v", r.Requires))
	}
	if r.Ensures != nil {
		sb.WriteString(fmt.Sprintf(" ensures %v", r.Ensures))
	}
	return sb.String()
}

// Name identifies r in diagnostics: its label, or its ordinal when it has none
func (r *Rule) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return fmt.Sprintf("#%d", r.Ordinal)
}
