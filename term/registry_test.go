package term_test

import (
	"testing"

	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortsAreInterned(t *testing.T) {
	r := term.NewRegistry()
	exp := r.Sort("Exp")
	assert.Same(t, exp, r.Sort("Exp"))
	assert.Same(t, r.Sorts.Int, r.Sort("Int"))
	assert.True(t, r.IsSubsorted(r.Sorts.KItem, exp), "user sorts are KItems")
	assert.True(t, r.IsSubsorted(r.Sorts.K, exp))
	assert.False(t, r.IsSubsorted(r.Sorts.KItem, r.Sorts.Bag))
	assert.True(t, r.IsSubsorted(r.Sorts.Bag, r.Sorts.Cell), "a cell is a singleton bag")

	other := term.NewRegistry()
	assert.NotSame(t, exp, other.Sort("Exp"), "registries do not share sorts")
	assert.Equal(t, exp.Ordinal(), other.Sort("Exp").Ordinal())
}

func TestSubsortClosureAndGLB(t *testing.T) {
	r := term.NewRegistry()
	a, b, c, d := r.Sort("A"), r.Sort("B"), r.Sort("C"), r.Sort("D")
	r.AddSubsort(a, b)
	r.AddSubsort(b, c)
	r.AddSubsort(d, c)

	assert.True(t, r.IsSubsorted(a, c))
	assert.False(t, r.IsSubsorted(c, a))
	assert.True(t, r.IsSubsortedEq(a, a))
	assert.Equal(t, []*term.Sort{b, c}, r.Subsorts(a))

	tests := []struct {
		name     string
		x, y     *term.Sort
		expected *term.Sort
	}{
		{"related", a, c, c},
		{"common subsort", a, d, c},
		{"common subsort reversed", d, b, c},
		{"unrelated builtins", r.Sorts.Int, r.Sorts.String, nil},
		{"below KItem", a, r.Sorts.KItem, a},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, r.GLB(test.x, test.y))
			assert.Equal(t, test.expected, r.GLB(test.y, test.x))
		})
	}
	assert.True(t, r.Compatible(a, d))
	assert.False(t, r.Compatible(r.Sorts.Int, r.Sorts.Bool))
}

func TestResolveChecksOrdinals(t *testing.T) {
	r := term.NewRegistry()
	s, err := r.ResolveSort("Int", r.Sorts.Int.Ordinal())
	require.NoError(t, err)
	assert.Same(t, r.Sorts.Int, s)

	_, err = r.ResolveSort("Int", r.Sorts.Int.Ordinal()+100)
	var snapshotErr *kerr.SnapshotError
	require.ErrorAs(t, err, &snapshotErr)
	assert.Equal(t, "Int", snapshotErr.Name)

	foo := r.Label("foo")
	l, err := r.ResolveLabel("foo", foo.Ordinal())
	require.NoError(t, err)
	assert.Same(t, foo, l)
	_, err = r.ResolveLabel("foo", foo.Ordinal()+1)
	assert.Error(t, err)
}

func TestResolveMissingEntries(t *testing.T) {
	r := term.NewRegistry()
	sorts, labels := len(r.AllSorts()), len(r.AllLabels())

	_, err := r.ResolveSort("Exp", sorts+3)
	assert.Error(t, err)
	_, err = r.ResolveLabel("foo", labels+3)
	assert.Error(t, err)
	_, found := r.LookupSort("Exp")
	assert.False(t, found)
	_, found = r.LookupLabel("foo")
	assert.False(t, found)
	assert.Len(t, r.AllSorts(), sorts)
	assert.Len(t, r.AllLabels(), labels)

	exp, err := r.ResolveSort("Exp", sorts)
	require.NoError(t, err)
	assert.Equal(t, sorts, exp.Ordinal())
	assert.True(t, r.IsSubsortedEq(r.Sorts.KItem, exp))
	foo, err := r.ResolveLabel("foo", labels)
	require.NoError(t, err)
	assert.Equal(t, labels, foo.Ordinal())
}

func TestPredicateLabels(t *testing.T) {
	r := term.NewRegistry()
	isInt := r.Label("isInt")
	assert.True(t, isInt.IsFunction())
	assert.Same(t, r.Sorts.Int, isInt.PredicateSort())
	assert.Equal(t, "K.isSort", isInt.Hook())
	assert.Same(t, r.Sorts.Bool, r.Apply(isInt, r.Int(1)).Sort())

	isThing := r.Label("isThing")
	assert.True(t, isThing.IsConstructor(), "Thing is not a sort")
	assert.Nil(t, isThing.PredicateSort())
}

func catchKError(f func()) (caught kerr.KError) {
	defer func() {
		if rec := recover(); rec != nil {
			caught = rec.(kerr.KError)
		}
	}()
	f()
	return nil
}

func TestOverloadedSorts(t *testing.T) {
	r := term.NewRegistry()
	nat := r.Sort("Nat")
	r.AddSubsort(r.Sorts.Int, nat)
	plus := r.DeclareLabel("plus", term.LabelSpec{Productions: []term.Production{
		{Args: []*term.Sort{r.Sorts.Int, r.Sorts.Int}, Result: r.Sorts.Int},
		{Args: []*term.Sort{nat, nat}, Result: nat},
	}})
	one := r.Token(nat, "1")

	assert.Same(t, r.Sorts.Int, r.Apply(plus, r.Int(1), r.Int(2)).Sort())
	assert.Same(t, nat, r.Apply(plus, one, one).Sort())
	assert.False(t, r.Apply(plus, one, one).IsExactSort(), "overloaded labels have no exact sort")

	err := catchKError(func() { r.Apply(plus, r.String("a"), one) })
	require.NotNil(t, err)
	assert.Equal(t, kerr.SortComputation, err.Code())
	assert.IsType(t, &kerr.SortComputationError{}, err)
}

func TestFreshVariablesAreDistinct(t *testing.T) {
	r := term.NewRegistry()
	x, y := r.FreshVar(r.Sorts.Int), r.FreshVar(r.Sorts.Int)
	assert.NotEqual(t, x, y)
	assert.True(t, x.Anonymous())
	assert.False(t, r.Var("X", r.Sorts.Int).Anonymous())
}
