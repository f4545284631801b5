package rewrite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/rewrite"
	"github.com/cottand/ksym/symbolic"
	"github.com/cottand/ksym/term"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const toyDefinition = `
sorts: [Exp]
syntax:
  - {label: foo, args: [Int], result: Exp}
  - {label: bar, args: [Int], result: Exp}
cells:
  - {label: k, sort: K}
rules:
  - label: foo-bar
    lhs: foo(X:Int)
    rhs: bar(X:Int)
`

const functionDefinition = `
sorts: [Exp]
syntax:
  - {label: foo, args: [Int], result: Exp}
  - {label: bar, args: [Int], result: Exp}
  - {label: inc, args: [Int], result: Int, function: true}
  - {label: loop, args: [Int], result: Int, function: true}
  - {label: pick, args: [Int], result: Int, function: true}
cells:
  - {label: k, sort: K}
rules:
  - label: inc-owise
    lhs: inc(X:Int)
    rhs: "0"
    attributes: [owise]
  - label: inc
    lhs: inc(X:Int)
    rhs: "` + "`_+Int_`" + `(X:Int, 1)"
    requires: "` + "`_>=Int_`" + `(X:Int, 0)"
  - label: loop
    lhs: loop(X:Int)
    rhs: loop(X:Int)
  - label: pick-one
    lhs: pick(X:Int)
    rhs: "1"
  - label: pick-two
    lhs: pick(X:Int)
    rhs: "2"
  - label: step
    lhs: foo(X:Int)
    rhs: bar(inc(X:Int))
`

const branchingDefinition = `
sorts: [Exp]
syntax:
  - {label: a, args: [], result: Exp}
  - {label: b, args: [], result: Exp}
  - {label: c, args: [], result: Exp}
  - {label: d, args: [], result: Exp}
cells:
  - {label: k, sort: K}
rules:
  - {label: a-b, lhs: a, rhs: b}
  - {label: a-c, lhs: a, rhs: c}
  - {label: b-d, lhs: b, rhs: d}
  - {label: d-a, lhs: d, rhs: a}
`

const streamDefinition = `
sorts: [Exp]
subsorts: [{big: Exp, small: Int}]
syntax:
  - {label: plus, args: [Exp, Exp], result: Exp}
  - {label: read, args: [], result: Exp}
cells:
  - {label: T, sort: Bag}
  - {label: k, sort: K, parent: T}
  - {label: env, sort: Map, parent: T}
  - {label: in, sort: List, parent: T, stream: stdin}
  - {label: out, sort: List, parent: T, stream: stdout}
rules:
  - label: heat-plus
    lhs: plus(E1:Exp, E2:Exp)
    rhs: E1:Exp ~> plus(HOLE, E2:Exp)
    attributes: [heat]
  - label: cool-plus
    lhs: I:Int ~> plus(HOLE, E2:Exp)
    rhs: plus(I:Int, E2:Exp)
    attributes: [cool]
  - label: read-two
    lhs: <k> read() ... </k> <in> List[A:Int, B:Int | L:List] </in>
    rhs: <k> plus(A:Int, B:Int) ... </k> <in> L:List </in>
  - label: read-five
    lhs: <k> read() ... </k> <in> List[A:Int, B:Int, C:Int, D:Int, E:Int | L:List] </in>
    rhs: <k> A:Int ... </k> <in> L:List </in>
  - label: flush
    lhs: <out> List[I:Int | L:List] </out>
    rhs: <out> L:List </out>
  - label: gc
    lhs: <env> M:Map </env>
    rhs: <env> .Map </env>
`

const storeDefinition = `
syntax:
  - {label: put, args: [Int, Int], result: KItem}
cells:
  - {label: T, sort: Bag}
  - {label: k, sort: K, parent: T}
  - {label: env, sort: Map, parent: T}
rules:
  - label: put
    lhs: <k> put(X:Int, Y:Int) ... </k> <env> M:Map </env>
    rhs: <k> .K ... </k> <env> Map{X:Int |-> 1, Y:Int |-> 2} </env>
`

func load(t *testing.T, doc string) *definition.Definition {
	t.Helper()
	d, err := definition.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return d
}

func parse(t *testing.T, d *definition.Definition, input string) term.Term {
	t.Helper()
	parsed, err := d.ParseTerm(input)
	require.NoError(t, err)
	return parsed
}

func rewriter(t *testing.T, d *definition.Definition, config rewrite.Config) (*rewrite.Rewriter, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	rw, err := rewrite.New(d, config, rewrite.WithMetrics(m))
	require.NoError(t, err)
	return rw, m
}

func terms(cts []*symbolic.ConstrainedTerm) []string {
	out := make([]string, len(cts))
	for i, ct := range cts {
		out[i] = ct.Term().String()
	}
	return out
}

func TestToyDefinitionRewritesOnceAndHalts(t *testing.T) {
	d := load(t, toyDefinition)
	rw, m := rewriter(t, d, rewrite.DefaultConfig())

	rules, err := rw.Table().Rules(parse(t, d, "<k> foo(5) </k>"))
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "foo-bar", rules[0].Label)

	result, steps, err := rw.Rewrite(parse(t, d, "<k> foo(5) </k>"), -1)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	assert.Equal(t, "<k> bar(5) </k>", result.Term().String())
	assert.True(t, result.Constraint().IsTrue())

	next, err := rw.Step(result)
	require.NoError(t, err)
	assert.Empty(t, next)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewriteSteps))
}

func TestRewriteBound(t *testing.T) {
	d := load(t, branchingDefinition)
	rw, _ := rewriter(t, d, rewrite.DefaultConfig())
	tests := []struct {
		bound int
		want  string
	}{
		{0, "<k> a() </k>"},
		{1, "<k> b() </k>"},
		{2, "<k> d() </k>"},
		{3, "<k> a() </k>"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			result, steps, err := rw.Rewrite(parse(t, d, "<k> a </k>"), test.bound)
			require.NoError(t, err)
			assert.Equal(t, test.bound, steps)
			assert.Equal(t, test.want, result.Term().String())
		})
	}
}

func TestSymbolicRewrite(t *testing.T) {
	d := load(t, toyDefinition)
	rw, _ := rewriter(t, d, rewrite.DefaultConfig())
	result, steps, err := rw.Rewrite(parse(t, d, "<k> foo(N:Int) </k>"), -1)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	assert.Equal(t, "<k> bar(N:Int) </k>", result.Term().String())
}

func TestFunctionEvaluation(t *testing.T) {
	d := load(t, functionDefinition)
	rw, _ := rewriter(t, d, rewrite.DefaultConfig())
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rule with side condition", "<k> foo(1) </k>", "<k> bar(2) </k>"},
		{"owise when every other rule fails", "<k> foo(-1) </k>", "<k> bar(0) </k>"},
		{"owise blocked by an undecided rule", "<k> foo(N:Int) </k>", "<k> bar(inc(N:Int)) </k>"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, _, err := rw.Rewrite(parse(t, d, test.in), 1)
			require.NoError(t, err)
			assert.Equal(t, test.want, result.Term().String())
		})
	}
}

func TestSelfRecursiveCallTerminates(t *testing.T) {
	d := load(t, functionDefinition)
	rw, _ := rewriter(t, d, rewrite.DefaultConfig())
	ctx := rw.Context()
	assert.Equal(t, "loop(3)", ctx.Evaluator.Evaluate(ctx, parse(t, d, "loop(3)")).String())
}

func TestFirstFunctionRuleWins(t *testing.T) {
	d := load(t, functionDefinition)
	for _, deterministic := range []bool{false, true} {
		config := rewrite.DefaultConfig()
		config.DeterministicFunctions = deterministic
		rw, _ := rewriter(t, d, config)
		ctx := rw.Context()
		assert.Equal(t, "1", ctx.Evaluator.Evaluate(ctx, parse(t, d, "pick(0)")).String())
	}
}

func TestSearch(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := load(t, branchingDefinition)
	tests := []struct {
		name    string
		depth   int
		pattern string
		want    []string
	}{
		{"final states", -1, "", []string{"<k> c() </k>"}},
		{"depth cut", 1, "", []string{"<k> b() </k>", "<k> c() </k>"}},
		{"pattern", -1, "<k> d </k>", []string{"<k> d() </k>"}},
		{"pattern out of reach", 1, "<k> d </k>", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := rewrite.DefaultConfig()
			config.Parallelism = 2
			rw, m := rewriter(t, d, config)
			var pattern term.Term
			if test.pattern != "" {
				pattern = parse(t, d, test.pattern)
			}
			results, err := rw.Search(context.Background(), parse(t, d, "<k> a </k>"), test.depth, pattern)
			require.NoError(t, err)
			assert.ElementsMatch(t, test.want, terms(results))
			assert.Positive(t, testutil.ToFloat64(m.SearchStates))
		})
	}
}

func TestSearchVisitsEachStateOnce(t *testing.T) {
	d := load(t, branchingDefinition)
	rw, m := rewriter(t, d, rewrite.DefaultConfig())
	_, err := rw.Search(context.Background(), parse(t, d, "<k> a </k>"), -1, nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SearchStates))
}

func TestSearchCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := load(t, branchingDefinition)
	rw, _ := rewriter(t, d, rewrite.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rw.Search(ctx, parse(t, d, "<k> a </k>"), -1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuditedRuleNotSelected(t *testing.T) {
	d := load(t, toyDefinition)
	config := rewrite.DefaultConfig()
	config.Audit = "foo-bar"
	rw, _ := rewriter(t, d, config)

	_, err := rw.Step(rw.Initial(parse(t, d, "<k> bar(1) </k>")))
	var audit *kerr.IndexAuditError
	require.True(t, errors.As(err, &audit))
	assert.Equal(t, "foo-bar", audit.Rule)

	_, _, err = rw.Rewrite(parse(t, d, "<k> foo(1) </k>"), 1)
	assert.NoError(t, err)
}

func TestInvalidConfig(t *testing.T) {
	d := load(t, toyDefinition)
	tests := []struct {
		name   string
		mutate func(*rewrite.Config)
	}{
		{"no parallelism", func(c *rewrite.Config) { c.Parallelism = 0 }},
		{"unknown policy", func(c *rewrite.Config) { c.Policy = "some" }},
		{"bound below -1", func(c *rewrite.Config) { c.Bound = -2 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := rewrite.DefaultConfig()
			test.mutate(&config)
			_, err := rewrite.New(d, config)
			assert.Error(t, err)
		})
	}
}

// Every rule whose left-hand side unifies with a configuration is among
// the candidates the index returns for it.
func TestIndexIsSound(t *testing.T) {
	tests := []struct {
		name           string
		definition     string
		configurations []string
	}{
		{"functions", functionDefinition, []string{
			"<k> foo(1) </k>",
			"<k> foo(N:Int) ~> bar(2) </k>",
			"<k> bar(1) </k>",
			"<k> X:KItem </k>",
			"<k> K:K </k>",
			"<k> .K </k>",
		}},
		{"heating and streams", streamDefinition, []string{
			"<T> <k> plus(1, 2) </k> <env> .Map </env> <in> .List </in> <out> .List </out> </T>",
			"<T> <k> 1 ~> plus(HOLE, 2) </k> <env> .Map </env> <in> List[1, 2] </in> <out> List[3] </out> </T>",
			"<T> <k> read() ~> K:K </k> <env> M:Map </env> <in> L:List </in> <out> .List </out> </T>",
			"<T> <k> X:KItem </k> <env> .Map </env> <in> List[1 | L:List] </in> <out> O:List </out> </T>",
			"<T> <k> K:K </k> <env> .Map </env> <in> .List </in> <out> .List </out> </T>",
		}},
	}
	for _, test := range tests {
		d := load(t, test.definition)
		rw, _ := rewriter(t, d, rewrite.DefaultConfig())
		for _, input := range test.configurations {
			t.Run(test.name+"/"+input, func(t *testing.T) {
				cfg := parse(t, d, input)
				candidates, err := rw.Table().Rules(cfg)
				require.NoError(t, err)
				selected := make(map[int]bool)
				for _, r := range candidates {
					selected[r.Ordinal] = true
				}
				for _, r := range d.RewriteRules() {
					renamed := r.Renamed(d.Registry)
					if len(rw.Context().Unify(cfg, renamed.LHS)) > 0 {
						assert.True(t, selected[r.Ordinal], "%s unifies with %s but was not selected", r.Name(), input)
					}
				}
			})
		}
	}
}

func TestUndefinedResultDropsBranch(t *testing.T) {
	d := load(t, storeDefinition)
	rw, m := rewriter(t, d, rewrite.DefaultConfig())
	tests := []struct {
		name  string
		in    string
		steps int
	}{
		{"distinct keys", "<T> <k> put(3, 4) </k> <env> .Map </env> </T>", 1},
		{"keys made equal", "<T> <k> put(3, 3) </k> <env> .Map </env> </T>", 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var result *symbolic.ConstrainedTerm
			var steps int
			require.NotPanics(t, func() {
				var err error
				result, steps, err = rw.Rewrite(parse(t, d, test.in), -1)
				require.NoError(t, err)
			})
			assert.Equal(t, test.steps, steps)
			assert.False(t, term.ContainsBottom(result.Term()))
		})
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewriteSteps))

	result, _, err := rw.Rewrite(parse(t, d, "<T> <k> put(3, 4) </k> <env> .Map </env> </T>"), -1)
	require.NoError(t, err)
	env := term.FindCells(result.Term(), "env")
	require.Len(t, env, 1)
	store, ok := env[0].Content().(*term.BuiltinMap)
	require.True(t, ok, "got %s", env[0])
	value, found := store.Get(rw.Context().Registry.Int(4))
	require.True(t, found)
	assert.Equal(t, "2", value.String())
}
