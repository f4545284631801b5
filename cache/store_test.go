package cache_test

import (
	"strings"
	"testing"

	"github.com/cottand/ksym/cache"
	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/index"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
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
  - {label: T, sort: Bag}
  - {label: k, sort: K, parent: T}
  - {label: env, sort: Map, parent: T}
rules:
  - label: foo-bar
    lhs: foo(X:Int)
    rhs: bar(X:Int)
  - label: gc
    lhs: <env> M:Map </env>
    rhs: <env> .Map </env>
`

func load(t *testing.T) *definition.Definition {
	t.Helper()
	d, err := definition.Load(strings.NewReader(toyDefinition))
	require.NoError(t, err)
	return d
}

func open(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(cache.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDefinitionRoundTrip(t *testing.T) {
	store := open(t)
	snap := load(t).Snapshot()

	fingerprint, err := store.PutDefinition(snap)
	require.NoError(t, err)

	loaded, found, err := store.LoadDefinition(fingerprint)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(snap, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("stored definition differs (-want +got):\n%s", diff)
	}

	_, found, err = store.LoadDefinition(fingerprint + 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexRoundTrip(t *testing.T) {
	store := open(t)
	def := load(t)
	table := index.NewTable(def)
	snap := table.Snapshot()

	require.NoError(t, store.PutIndex(42, snap))
	loaded, found, err := store.LoadIndex(42)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(snap, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("stored index differs (-want +got):\n%s", diff)
	}

	_, found, err = store.LoadIndex(7)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTableIsBuiltOnce(t *testing.T) {
	store := open(t)
	m := metrics.New(prometheus.NewRegistry())

	first, err := store.Table(load(t), index.WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuilds))

	// a fresh load of the same definition has the same fingerprint
	def := load(t)
	second, err := store.Table(def, index.WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuilds))
	assert.True(t, second.Built())

	if diff := cmp.Diff(first.Snapshot(), second.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("restored table differs (-want +got):\n%s", diff)
	}

	cfg, err := def.ParseTerm("<T> <k> foo(1) </k> <env> .Map </env> </T>")
	require.NoError(t, err)
	rules, err := second.Rules(cfg)
	require.NoError(t, err)
	var labels []string
	for _, r := range rules {
		labels = append(labels, r.Label)
	}
	assert.ElementsMatch(t, []string{"foo-bar", "gc"}, labels)
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := cache.Open(cache.Config{})
	assert.ErrorContains(t, err, "invalid cache config")
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.Open(cache.DefaultConfig(dir))
	require.NoError(t, err)
	fingerprint, err := store.PutDefinition(load(t).Snapshot())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = cache.Open(cache.DefaultConfig(dir))
	require.NoError(t, err)
	defer store.Close()
	_, found, err := store.LoadDefinition(fingerprint)
	require.NoError(t, err)
	assert.True(t, found)
}
