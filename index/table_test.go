package index_test

import (
	"strings"
	"testing"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/index"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

const streamDefinition = `
sorts: [Exp]
subsorts: [{big: Exp, small: Int}]
syntax:
  - {label: plus, args: [Exp, Exp], result: Exp}
  - {label: read, args: [], result: Exp}
  - {label: print, args: [Exp], result: Exp}
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

func load(t *testing.T, doc string) *definition.Definition {
	t.Helper()
	d, err := definition.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return d
}

func parse(t *testing.T, d *definition.Definition, input string) term.Term {
	t.Helper()
	cfg, err := d.ParseTerm(input)
	require.NoError(t, err)
	return cfg
}

func labels(rules []*definition.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Label
	}
	return out
}

func TestToyDefinitionSelectsExactlyFooBar(t *testing.T) {
	d := load(t, toyDefinition)
	table := index.NewTable(d)
	assert.False(t, table.Built())

	rules, err := table.Rules(parse(t, d, "<k> foo(5) </k>"))
	require.NoError(t, err)
	assert.True(t, table.Built(), "first query builds the table")
	assert.Equal(t, []string{"foo-bar"}, labels(rules))

	rules, err = table.Rules(parse(t, d, "<k> bar(5) </k>"))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRulesByConfiguration(t *testing.T) {
	d := load(t, streamDefinition)
	table := index.NewTable(d)
	table.Build()

	tests := []struct {
		name          string
		configuration string
		want          []string
	}{
		{
			name:          "heating on a redex",
			configuration: "<T> <k> plus(1, 2) </k> <env> .Map </env> <in> .List </in> <out> .List </out> </T>",
			want:          []string{"heat-plus", "gc"},
		},
		{
			name:          "cooling on a frozen context",
			configuration: "<T> <k> 3 ~> plus(HOLE, 2) </k> <env> .Map </env> <in> .List </in> <out> .List </out> </T>",
			want:          []string{"cool-plus", "gc"},
		},
		{
			name:          "three buffered inputs admit a two element lookahead only",
			configuration: "<T> <k> read() </k> <env> .Map </env> <in> List[1, 2, 3] </in> <out> .List </out> </T>",
			want:          []string{"read-two", "gc"},
		},
		{
			name:          "symbolic input buffer admits any lookahead",
			configuration: "<T> <k> read() </k> <env> .Map </env> <in> List[1 | L:List] </in> <out> .List </out> </T>",
			want:          []string{"read-two", "read-five", "gc"},
		},
		{
			name:          "output rules come first",
			configuration: "<T> <k> plus(1, 2) </k> <env> .Map </env> <in> .List </in> <out> List[7] </out> </T>",
			want:          []string{"flush", "heat-plus", "gc"},
		},
		{
			name:          "unindexed rules are always candidates",
			configuration: "<T> <k> .K </k> <env> .Map </env> <in> .List </in> <out> .List </out> </T>",
			want:          []string{"gc"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rules, err := table.Rules(parse(t, d, test.configuration))
			require.NoError(t, err)
			assert.Equal(t, test.want, labels(rules))
		})
	}
}

func TestExtractBufferLengths(t *testing.T) {
	d := load(t, streamDefinition)
	c := index.Extract(d, parse(t, d, "<T> <k> read() </k> <env> .Map </env> <in> List[1, 2, 3] </in> <out> List[1 | L:List] </out> </T>"))
	assert.Equal(t, 3, c.MaxInputBufLen())
	assert.Greater(t, c.MaxOutputBufLen(), 1<<30)
	assert.Equal(t, []term.CellLabel{"k"}, c.Cells())
	require.Len(t, c.Pairs("k"), 1)
	assert.Equal(t, "(Label(read), Bottom)", c.Pairs("k")[0].String())
	require.Len(t, c.Instream(), 1)
	require.Len(t, c.Outstream(), 1)
}

func TestAudit(t *testing.T) {
	d := load(t, toyDefinition)
	table := index.NewTable(d, index.WithAudit("foo-bar"))

	_, err := table.Rules(parse(t, d, "<k> foo(1) </k>"))
	assert.NoError(t, err)

	rules, err := table.Rules(parse(t, d, "<k> bar(1) </k>"))
	assert.Empty(t, rules)
	var auditErr *kerr.IndexAuditError
	require.ErrorAs(t, err, &auditErr)
	assert.Equal(t, kerr.IndexAudit, auditErr.Code())
	assert.Equal(t, "foo-bar", auditErr.Rule)
	assert.Equal(t, []string{"cell <k> (Label(bar), Bottom)"}, auditErr.Unmatched)
}

func TestBuildIsIdempotent(t *testing.T) {
	d := load(t, streamDefinition)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	table := index.NewTable(d, index.WithMetrics(m))

	table.Build()
	first := table.Snapshot()
	table.Build()
	if diff := cmp.Diff(first, table.Snapshot()); diff != "" {
		t.Errorf("rebuild changed the table (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexBuilds))

	_, err := table.Rules(parse(t, d, "<T> <k> plus(1, 2) </k> <env> .Map </env> <in> .List </in> <out> .List </out> </T>"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexBuilds), "queries do not rebuild")
	assert.Equal(t, 1, testutil.CollectAndCount(m.CandidateRules))
}

func TestSnapshotRestore(t *testing.T) {
	d := load(t, streamDefinition)
	table := index.NewTable(d)
	snap := table.Snapshot()
	assert.NotEmpty(t, snap.Buckets)
	assert.Len(t, snap.Unindexed, 1)

	// an independently loaded definition interns the same ordinals
	other := load(t, streamDefinition)
	restored, err := index.Restore(other, snap)
	require.NoError(t, err)
	assert.True(t, restored.Built())
	if diff := cmp.Diff(snap, restored.Snapshot()); diff != "" {
		t.Errorf("snapshot changed after restore (-want +got):\n%s", diff)
	}

	configuration := "<T> <k> read() </k> <env> .Map </env> <in> List[1, 2, 3] </in> <out> .List </out> </T>"
	want, err := table.Rules(parse(t, d, configuration))
	require.NoError(t, err)
	got, err := restored.Rules(parse(t, other, configuration))
	require.NoError(t, err)
	assert.Equal(t, labels(want), labels(got))

	_, err = index.Restore(load(t, toyDefinition), snap)
	assert.Error(t, err, "restoring against another definition")
}
