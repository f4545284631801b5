package symbolic

import (
	"testing"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeReentry(t *testing.T) {
	r := term.NewRegistry()
	c := New(NewContext(r))
	c.normal = false
	c.normalizing = true
	defer func() {
		recovered := recover()
		require.NotNil(t, recovered)
		err, ok := recovered.(error)
		require.True(t, ok)
		var invariant *kerr.InvariantError
		assert.ErrorAs(t, err, &invariant)
	}()
	c.normalize()
}

func TestMatchBagsWithTwoFramesPanics(t *testing.T) {
	r := term.NewRegistry()
	r.DeclareCell("thread", term.Star)
	ctx := NewContext(r)
	thread := r.Cell("thread", r.Int(1))
	a := r.Bag(thread, r.Var("A", r.Sorts.Bag), r.Var("B", r.Sorts.Bag)).(*term.CellCollection)
	b := r.Bag(thread).(*term.CellCollection)
	assert.Panics(t, func() { ctx.matchBags(a, b) })
}

func TestAlignSequencesNeedsFrame(t *testing.T) {
	r := term.NewRegistry()
	ctx := NewContext(r)
	build := func(items []term.Term, frame term.Term) term.Term { return r.List(items, frame) }
	_, ok := ctx.alignSequences([]term.Term{r.Int(1), r.Int(2)}, nil, []term.Term{r.Int(1)}, nil, build)
	assert.False(t, ok)

	alts, ok := ctx.alignSequences([]term.Term{r.Int(1), r.Int(2)}, nil, []term.Term{r.Int(1)}, r.Var("L", r.Sorts.List), build)
	require.True(t, ok)
	require.Len(t, alts, 1)
	assert.Len(t, alts[0], 2)
}

func TestGuardTellsCollidingCallsApart(t *testing.T) {
	r := term.NewRegistry()
	one, two := term.MustParse(r, "f(1)"), term.MustParse(r, "f(2)")

	// one filed under the hash of two
	g := Guard{tried: immutable.NewMap[uint64, []term.Term](guardHasher).Set(two.Hash(), []term.Term{one}), size: 1}
	assert.False(t, g.Contains(two))

	g = g.With(two)
	assert.True(t, g.Contains(two))
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 2, g.With(two).Len())
}
