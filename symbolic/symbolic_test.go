package symbolic_test

import (
	"testing"

	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/symbolic"
	"github.com/cottand/ksym/term"
	"github.com/hashicorp/go-set/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx     *symbolic.Context
	session *term.ParseSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := term.NewRegistry()
	exp := r.Sort("Exp")
	r.AddSubsort(exp, r.Sorts.Int)
	r.DeclareLabel("foo", term.LabelSpec{Productions: []term.Production{{Args: []*term.Sort{exp}, Result: exp}}})
	r.DeclareLabel("bar", term.LabelSpec{Productions: []term.Production{{Args: []*term.Sort{exp}, Result: exp}}})
	r.DeclareLabel("f", term.LabelSpec{Productions: []term.Production{{Args: []*term.Sort{exp}, Result: exp}}, Function: true})
	ctx := symbolic.NewContext(r)
	ctx.Metrics = metrics.New(prometheus.NewRegistry())
	return &fixture{ctx: ctx, session: term.NewParseSession(r)}
}

func (f *fixture) parse(t *testing.T, input string) term.Term {
	t.Helper()
	parsed, err := f.session.Parse(input)
	require.NoError(t, err)
	return parsed
}

func (f *fixture) constraint(t *testing.T, pairs ...string) *symbolic.Constraint {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	c := symbolic.New(f.ctx)
	for i := 0; i < len(pairs); i += 2 {
		c.Add(f.parse(t, pairs[i]), f.parse(t, pairs[i+1]))
	}
	return c
}

func TestFalseIsFinal(t *testing.T) {
	f := newFixture(t)
	c := f.constraint(t, "1", "2")
	require.True(t, c.IsFalse())
	eq, ok := c.FalsifyingEquality()
	require.True(t, ok)
	assert.Equal(t, "1 = 2", eq.String())

	c.Add(f.parse(t, "X:Exp"), f.parse(t, "foo(3)"))
	assert.True(t, c.IsFalse())
	c.AddAll(f.constraint(t, "Y:Exp", "4"))
	assert.True(t, c.IsFalse())
	assert.Equal(t, symbolic.False, c.Truth())
	assert.Empty(t, c.Substitution())
	assert.Empty(t, c.Equalities())
}

func TestNormalization(t *testing.T) {
	f := newFixture(t)
	c := f.constraint(t,
		"f(X:Exp)", "f(Y:Exp)",
		"X:Exp", "foo(Y:Exp)",
		"Y:Exp", "1",
	)
	subst := c.Substitution()
	eqs := c.Equalities()
	require.Len(t, eqs, 1)
	assert.Equal(t, "foo(1)", subst[f.parse(t, "X:Exp").(term.Variable)].String())

	for _, eq := range eqs {
		vars := term.Variables(eq.LHS)
		term.CollectVariables(eq.RHS, vars)
		for v := range subst {
			assert.False(t, vars.Contains(v), "%v is bound and occurs in %v", v, eq)
		}
	}

	assert.Equal(t, subst, c.Substitution())
	assert.Equal(t, eqs, c.Equalities())
	assert.Equal(t, symbolic.Unknown, c.Truth())
	assert.False(t, c.IsSubstitution())
}

func TestOccursCheck(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		isFalse bool
	}{
		{"under constructors", []string{"X:Exp", "foo(X:Exp)"}, true},
		{"under a function", []string{"X:Exp", "f(X:Exp)"}, false},
		{"trivial", []string{"X:Exp", "X:Exp"}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t)
			assert.Equal(t, test.isFalse, f.constraint(t, test.pairs...).IsFalse())
		})
	}
}

func TestOrientSubstitution(t *testing.T) {
	f := newFixture(t)
	c := f.constraint(t, "X:Exp", "Y:Exp", "Y:Exp", "Z:Exp")
	x, y, z := f.parse(t, "X:Exp").(term.Variable), f.parse(t, "Y:Exp").(term.Variable), f.parse(t, "Z:Exp").(term.Variable)
	targets := set.From([]term.Variable{y, z})

	c.OrientSubstitution(targets)
	first := c.Substitution()
	assert.Equal(t, term.Substitution{y: x, z: x}, first)

	c.OrientSubstitution(targets)
	assert.Equal(t, first, c.Substitution())
}

func TestUnifyGroundTerms(t *testing.T) {
	tests := []struct {
		a, b  string
		equal bool
	}{
		{"foo(1)", "foo(1)", true},
		{"foo(1)", "foo(2)", false},
		{"foo(1)", "bar(1)", false},
		{"<k> foo(1) ~> bar(2) </k>", "<k> foo(1) ~> bar(2) </k>", true},
		{"<k> foo(1) ~> bar(2) </k>", "<k> foo(1) </k>", false},
		{"Map{1 |-> 2, 3 |-> 4}", "Map{3 |-> 4, 1 |-> 2}", true},
		{"Map{1 |-> 2}", "Map{1 |-> 3}", false},
		{"Set{1, 2}", "Set{2, 1}", true},
		{"List[1, 2]", "List[2, 1]", false},
	}
	for _, test := range tests {
		t.Run(test.a+" = "+test.b, func(t *testing.T) {
			f := newFixture(t)
			a := symbolic.NewConstrainedTerm(f.ctx, f.parse(t, test.a), nil)
			b := symbolic.NewConstrainedTerm(f.ctx, f.parse(t, test.b), nil)
			solutions := a.Unify(b)
			if !test.equal {
				assert.Empty(t, solutions)
				assert.Equal(t, 1.0, testutil.ToFloat64(f.ctx.Metrics.Unifications.WithLabelValues("failed")))
				return
			}
			require.Len(t, solutions, 1)
			assert.True(t, solutions[0].IsTrue())
			assert.Equal(t, 1.0, testutil.ToFloat64(f.ctx.Metrics.Unifications.WithLabelValues("solved")))
		})
	}
}

func TestUnifyIncompatibleKinds(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.ctx.Unify(f.parse(t, "<k> 1 </k>"), f.parse(t, "1")))
}

func TestUnifyPatterns(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		pattern string
		want    []string
	}{
		{
			name:    "constructor arguments",
			subject: "foo(1)",
			pattern: "foo(X:Exp)",
			want:    []string{"X:Exp = 1"},
		},
		{
			name:    "sequence frame",
			subject: "<k> foo(1) ~> bar(2) ~> 3 </k>",
			pattern: "<k> foo(X:Exp) ~> R:K </k>",
			want:    []string{"R:K = bar(2) ~> 3 /\\ X:Exp = 1"},
		},
		{
			name:    "list frame",
			subject: "List[1, 2, 3]",
			pattern: "List[X:Int | L:List]",
			want:    []string{"L:List = List[2, 3] /\\ X:Int = 1"},
		},
		{
			name:    "map entries",
			subject: "Map{1 |-> 10, 2 |-> 20}",
			pattern: "Map{K:Int |-> V:Int | M:Map}",
			want: []string{
				"K:Int = 1 /\\ M:Map = Map{2 |-> 20} /\\ V:Int = 10",
				"K:Int = 2 /\\ M:Map = Map{1 |-> 10} /\\ V:Int = 20",
			},
		},
		{
			name:    "cell collection",
			subject: "<T> <k> 1 </k> <env> 2 </env> </T>",
			pattern: "<T> <k> X:Int </k> R:Bag </T>",
			want:    []string{"R:Bag = <env> 2 </env> /\\ X:Int = 1"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t)
			solutions := f.ctx.Unify(f.parse(t, test.subject), f.parse(t, test.pattern))
			var got []string
			for _, s := range solutions {
				got = append(got, s.String())
			}
			assert.ElementsMatch(t, test.want, got)
		})
	}
}

func TestSimplifyDecomposes(t *testing.T) {
	f := newFixture(t)
	c := f.constraint(t, "foo(f(X:Exp))", "foo(Y:Exp)")
	require.Len(t, c.Equalities(), 1)
	c.Simplify()
	require.True(t, c.IsSubstitution())
	assert.True(t, term.Equal(f.parse(t, "f(X:Exp)"), c.Substitution()[f.parse(t, "Y:Exp").(term.Variable)]))

	c = f.constraint(t, "foo(bar(f(X:Exp)))", "foo(foo(f(X:Exp)))")
	require.False(t, c.IsFalse())
	assert.True(t, c.Simplify().IsFalse())
}

func TestImpliesCaseSplit(t *testing.T) {
	tests := []struct {
		name       string
		premise    []string
		conclusion []string
		want       bool
	}{
		{"both branches hold", nil, []string{"#if B:Bool #then B:Bool #else false #fi", "B:Bool"}, true},
		{"else branch fails", nil, []string{"#if B:Bool #then 1 #else 2 #fi", "1"}, false},
		{"premise picks branch", []string{"B:Bool", "true"}, []string{"#if B:Bool #then 1 #else 2 #fi", "1"}, true},
		{"false premise", []string{"1", "2"}, []string{"X:Exp", "foo(1)"}, true},
		{"unproven binding", nil, []string{"X:Exp", "foo(1)"}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t)
			premise := f.constraint(t, test.premise...)
			conclusion := f.constraint(t, test.conclusion...)
			assert.Equal(t, test.want, premise.Implies(conclusion, nil))
		})
	}
}

func TestImpliesExistential(t *testing.T) {
	f := newFixture(t)
	premise := f.constraint(t, "X:Exp", "foo(1)")
	conclusion := f.constraint(t, "X:Exp", "foo(Y:Exp)")
	y := f.parse(t, "Y:Exp").(term.Variable)
	assert.True(t, premise.Implies(conclusion, set.From([]term.Variable{y})))
	assert.False(t, premise.Implies(f.constraint(t, "X:Exp", "foo(2)"), nil))
}

func TestMatchImplies(t *testing.T) {
	f := newFixture(t)
	subject := symbolic.NewConstrainedTerm(f.ctx, f.parse(t, "<k> foo(N:Int) </k>"), f.constraint(t, "N:Int", "3"))
	pattern := symbolic.NewConstrainedTerm(f.ctx, f.parse(t, "<k> foo(M:Int) </k>"), nil)
	match := subject.MatchImplies(pattern)
	require.NotNil(t, match)
	assert.False(t, match.IsFalse())

	other := symbolic.NewConstrainedTerm(f.ctx, f.parse(t, "<k> bar(M:Int) </k>"), nil)
	assert.Nil(t, subject.MatchImplies(other))
}

func TestGuardIsPersistent(t *testing.T) {
	f := newFixture(t)
	one, two, three := f.parse(t, "f(1)"), f.parse(t, "f(2)"), f.parse(t, "f(3)")
	var root symbolic.Guard
	left := root.With(one)
	right := left.With(two)
	sibling := left.With(three)

	assert.Equal(t, 0, root.Len())
	assert.False(t, root.Contains(one))
	assert.Equal(t, 1, left.Len())
	assert.False(t, left.Contains(two))
	assert.True(t, right.Contains(one))
	assert.True(t, right.Contains(two))
	assert.False(t, right.Contains(three))
	assert.True(t, sibling.Contains(three))
	assert.False(t, sibling.Contains(two))
}

func TestAddKindMismatchPanics(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		symbolic.New(f.ctx).Add(f.parse(t, "<k> 1 </k>"), f.parse(t, "1"))
	})
}
