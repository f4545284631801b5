package rewrite

import (
	"testing"

	"github.com/cottand/ksym/symbolic"
	"github.com/cottand/ksym/term"
	"github.com/hashicorp/go-set/v3"
	"github.com/stretchr/testify/assert"
)

func TestStatesAreKeyedByContent(t *testing.T) {
	r := term.NewRegistry()
	ctx := symbolic.NewContext(r)
	x := r.Var("X", r.Sorts.Int)
	bound := func(v int64) *symbolic.Constraint {
		c := symbolic.New(ctx)
		c.Add(x, r.Int(v))
		return c
	}
	k := term.MustParse(r, "<k> foo(X:Int) </k>")

	visited := set.NewHashSet[*state, string](0)
	assert.True(t, visited.Insert(newState(symbolic.NewConstrainedTerm(ctx, k, bound(1)))))
	assert.True(t, visited.Insert(newState(symbolic.NewConstrainedTerm(ctx, k, bound(2)))))
	assert.True(t, visited.Insert(newState(symbolic.NewConstrainedTerm(ctx, k, nil))))
	assert.False(t, visited.Insert(newState(symbolic.NewConstrainedTerm(ctx, k, bound(1)))))
	assert.Equal(t, 3, visited.Size())
}
