package definition_test

import (
	"strings"
	"testing"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ioDefinition = `
sorts: [Exp]
syntax:
  - {label: foo, args: [Int], result: Exp}
  - {label: bar, args: [Int], result: Exp}
  - {label: read, args: [], result: Exp}
  - {label: inc, args: [Int], result: Int, function: true}
cells:
  - {label: T, sort: Bag}
  - {label: k, sort: K, parent: T}
  - {label: env, sort: Map, parent: T}
  - {label: in, sort: List, parent: T, stream: stdin}
  - {label: out, sort: List, parent: T, stream: stdout}
rules:
  - label: foo-bar
    lhs: foo(X:Int)
    rhs: bar(X:Int)
  - label: read-two
    lhs: <k> read() ... </k> <in> List[A:Int, B:Int | L:List] </in>
    rhs: <k> bar(A:Int) ... </k> <in> L:List </in>
  - label: lookup
    lhs: <k> foo(X:Int) ... </k> <env> E:Map </env>
    rhs: <k> bar(V:Int) ... </k> <env> E:Map </env>
    lookups:
      - {kind: map, base: "E:Map", key: "X:Int", value: "V:Int"}
      - {kind: list, base: "List[1]", key: "0", value: "W:Int"}
  - label: inc-owise
    lhs: inc(X:Int)
    rhs: X:Int
    attributes: [owise]
  - label: inc
    lhs: inc(X:Int)
    rhs: "` + "`_+Int_`" + `(X:Int, 1)"
    requires: "` + "`_>=Int_`" + `(X:Int, 0)"
`

func load(t *testing.T, doc string) *definition.Definition {
	t.Helper()
	d, err := definition.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return d
}

func TestLoadWrapsFragments(t *testing.T) {
	d := load(t, ioDefinition)
	assert.Equal(t, term.CellLabel("T"), d.RootCell)
	assert.Equal(t, []term.CellLabel{"k"}, d.IndexedCells())

	fooBar, ok := d.RuleByLabel("foo-bar")
	require.True(t, ok)
	assert.Equal(t, "<T> <k> foo(X:Int) ~> DotVar_k:K </k> DotVar_T:Bag </T>", fooBar.LHS.String())
	assert.Equal(t, "<T> <k> bar(X:Int) ~> DotVar_k:K </k> DotVar_T:Bag </T>", fooBar.RHS.String())
	assert.Nil(t, fooBar.Requires)

	readTwo, ok := d.RuleByLabel("read-two")
	require.True(t, ok)
	assert.Equal(t, definition.Stdin, readTwo.Attributes.Stream, "stream inferred from the <in> cell")
	assert.Equal(t, 2, readTwo.LookupCount())
	assert.Len(t, term.FindCells(readTwo.LHS, "in"), 1)

	lookup, ok := d.RuleByLabel("lookup")
	require.True(t, ok)
	assert.Equal(t, 1, lookup.LookupCount(), "one list lookup")
	eqs := lookup.LookupEqualities(d.Registry)
	require.Len(t, eqs, 2)
	assert.Equal(t, "`Map:lookup`(E:Map, X:Int)", eqs[0][0].String())
	assert.Equal(t, "V:Int", eqs[0][1].String())
}

func TestFunctionRulesOwiseLast(t *testing.T) {
	d := load(t, ioDefinition)
	inc, ok := d.Registry.LookupLabel("inc")
	require.True(t, ok)
	rules := d.FunctionRules(inc)
	require.Len(t, rules, 2)
	assert.Equal(t, "inc", rules[0].Label)
	assert.Equal(t, "inc-owise", rules[1].Label)
	assert.Len(t, d.RewriteRules(), 3)
	for _, r := range rules {
		assert.True(t, d.IsFunctionRule(r))
	}
}

func TestRenamedRulesAreFresh(t *testing.T) {
	d := load(t, ioDefinition)
	r, _ := d.RuleByLabel("lookup")
	renamed := r.Renamed(d.Registry)
	assert.Equal(t, r.Ordinal, renamed.Ordinal)
	for v := range renamed.Variables().Items() {
		assert.True(t, v.Anonymous(), "%v is not fresh", v)
	}
	assert.Equal(t, r.Variables().Size(), renamed.Variables().Size())
	assert.False(t, r.Variables().Intersect(renamed.Variables()).Size() > 0)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, doc string
	}{
		{"no cells", "rules: []"},
		{"unknown field", "cells: [{label: k}]\nbogus: 1"},
		{"bad multiplicity", "cells: [{label: k, multiplicity: many}]"},
		{"bad term", "cells: [{label: k}]\nrules: [{lhs: 'foo(', rhs: 'bar'}]"},
		{"undeclared cell", "cells: [{label: k}]\nrules: [{lhs: '<nope> 1 </nope>', rhs: '<nope> 2 </nope>'}]"},
		{"heat and cool", "cells: [{label: k}]\nrules: [{lhs: 'a', rhs: 'b', attributes: [heat, cool]}]"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := definition.Load(strings.NewReader(test.doc))
			assert.Error(t, err)
		})
	}

	_, err := definition.Load(strings.NewReader("cells: [{label: k}]\nrules: [{label: r, lhs: 'foo(', rhs: 'bar'}]"))
	var errs *kerr.Errors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, kerr.DefinitionLoad, errs.Errors()[0].Code())
}

func TestSnapshotRestore(t *testing.T) {
	d := load(t, ioDefinition)
	snap := d.Snapshot()

	restored, err := definition.Restore(snap, term.NewRegistry())
	require.NoError(t, err)
	if diff := cmp.Diff(snap, restored.Snapshot()); diff != "" {
		t.Errorf("snapshot changed after restore (-want +got):\n%s", diff)
	}

	want, err := snap.Fingerprint()
	require.NoError(t, err)
	got, err := restored.Snapshot().Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for i, r := range restored.Rules() {
		assert.Equal(t, d.Rules()[i].LookupCount(), r.LookupCount())
		assert.Equal(t, d.Rules()[i].LHS.Hash(), r.LHS.Hash())
	}
}

func TestRestoreRejectsDisagreeingRegistry(t *testing.T) {
	d := load(t, ioDefinition)
	reg := term.NewRegistry()
	reg.Sort("Unrelated")
	_, err := definition.Restore(d.Snapshot(), reg)
	var snapshotErr *kerr.SnapshotError
	assert.ErrorAs(t, err, &snapshotErr)
}
