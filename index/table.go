package index

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/internal/log"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/hashicorp/go-set/v3"
)

var logger = log.Section("index")

type bucketKind uint8

const (
	plainBucket bucketKind = iota
	heatingBucket
	coolingBucket
	instreamBucket
	outstreamBucket
)

func (k bucketKind) String() string {
	return [...]string{"plain", "heating", "cooling", "instream", "outstream"}[k]
}

type bucketKey struct {
	kind bucketKind
	cell term.CellLabel
}

type memoKey struct {
	bucket   bucketKey
	observed Index
}

// tableData is immutable once published; memo only caches query results
type tableData struct {
	buckets   map[bucketKey]map[Index][]*definition.Rule
	unindexed []*definition.Rule
	memo      sync.Map
}

// Table is the rule index of a definition. It is safe for concurrent use;
// Build replaces its content atomically.
type Table struct {
	def     *definition.Definition
	data    atomic.Pointer[tableData]
	audit   string
	metrics *metrics.Metrics
}

type Option func(*Table)

// WithAudit makes queries fail with a *kerr.IndexAuditError whenever the
// rule labelled rule is not among the candidates
func WithAudit(rule string) Option {
	return func(t *Table) { t.audit = rule }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Table) { t.metrics = m }
}

// NewTable returns an unbuilt table over def. It is built by Build or by the first query.
func NewTable(def *definition.Definition, opts ...Option) *Table {
	t := &Table{def: def, metrics: metrics.Discard()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Built reports whether the table has been built
func (t *Table) Built() bool { return t.data.Load() != nil }

// Build indexes every rewrite rule of the definition, replacing any previous content
func (t *Table) Build() {
	data := &tableData{buckets: make(map[bucketKey]map[Index][]*definition.Rule)}
	add := func(key bucketKey, index Index, r *definition.Rule) {
		bucket, ok := data.buckets[key]
		if !ok {
			bucket = make(map[Index][]*definition.Rule)
			data.buckets[key] = bucket
		}
		if !slices.Contains(bucket[index], r) {
			bucket[index] = append(bucket[index], r)
		}
	}
	computation := t.def.ComputationCell

	for _, r := range t.def.RewriteRules() {
		switch {
		case r.Attributes.Stream != definition.NoStream:
			kind := instreamBucket
			if r.Attributes.Stream.IsOutput() {
				kind = outstreamBucket
			}
			found := false
			for _, stream := range t.def.StreamCells() {
				if stream.Stream != r.Attributes.Stream {
					continue
				}
				for _, cell := range term.FindCells(r.LHS, stream.Label) {
					found = true
					if kind == instreamBucket {
						add(bucketKey{kind: kind}, InstreamPair(cell.Content()).Second, r)
					} else {
						add(bucketKey{kind: kind}, OutstreamPair(cell.Content()).First, r)
					}
				}
			}
			if !found {
				add(bucketKey{kind: kind}, Top, r)
			}
		case r.Attributes.Heat || r.Attributes.Cool:
			kind := heatingBucket
			if r.Attributes.Cool {
				kind = coolingBucket
			}
			cells := term.FindCells(r.LHS, computation)
			for _, cell := range cells {
				pair := SequencePair(cell.Content())
				if kind == heatingBucket {
					add(bucketKey{kind: kind, cell: computation}, pair.First, r)
				} else {
					add(bucketKey{kind: kind, cell: computation}, pair.Second, r)
				}
			}
			if len(cells) == 0 {
				data.unindexed = append(data.unindexed, r)
			}
		default:
			indexed := false
			for _, label := range t.def.IndexedCells() {
				for _, cell := range term.FindCells(r.LHS, label) {
					indexed = true
					add(bucketKey{kind: plainBucket, cell: label}, SequencePair(cell.Content()).First, r)
				}
			}
			if !indexed {
				data.unindexed = append(data.unindexed, r)
			}
		}
	}
	t.data.Store(data)
	t.metrics.IndexBuilds.Inc()
	logger.Debug("built rule index", "buckets", len(data.buckets), "unindexed", len(data.unindexed))
}

func (t *Table) load() *tableData {
	if data := t.data.Load(); data != nil {
		return data
	}
	t.Build()
	return t.data.Load()
}

// match returns the rules of a bucket whose index is unifiable with observed, in rule order
func (data *tableData) match(key bucketKey, observed Index) []*definition.Rule {
	mk := memoKey{bucket: key, observed: observed}
	if cached, ok := data.memo.Load(mk); ok {
		return cached.([]*definition.Rule)
	}
	var matched []*definition.Rule
	for index, rules := range data.buckets[key] {
		if index.IsUnifiable(observed) {
			matched = append(matched, rules...)
		}
	}
	slices.SortFunc(matched, func(a, b *definition.Rule) int { return a.Ordinal - b.Ordinal })
	matched = slices.CompactFunc(matched, func(a, b *definition.Rule) bool { return a == b })
	data.memo.Store(mk, matched)
	return matched
}

// Rules returns the candidate rules for configuration: stream rules first,
// then the rules of each indexed cell, then the unindexed rules. Stream
// rules needing more elements than are buffered are left out.
func (t *Table) Rules(configuration term.Term) ([]*definition.Rule, error) {
	rules, _, err := t.query(Extract(t.def, configuration))
	return rules, err
}

// RulesFor is Rules on an already extracted configuration index
func (t *Table) RulesFor(c *ConfigurationTermIndex) ([]*definition.Rule, error) {
	rules, _, err := t.query(c)
	return rules, err
}

func (t *Table) query(c *ConfigurationTermIndex) ([]*definition.Rule, []string, error) {
	data := t.load()
	seen := set.New[int](0)
	var result []*definition.Rule
	var unmatched []string
	collect := func(rules []*definition.Rule, bound int) int {
		n := 0
		for _, r := range rules {
			if r.LookupCount() > bound {
				continue
			}
			n++
			if seen.Insert(r.Ordinal) {
				result = append(result, r)
			}
		}
		return n
	}

	for _, pair := range c.instream {
		if collect(data.match(bucketKey{kind: instreamBucket}, pair.Second), c.maxInputBufLen) == 0 {
			unmatched = append(unmatched, "instream "+pair.String())
		}
	}
	for _, pair := range c.outstream {
		if collect(data.match(bucketKey{kind: outstreamBucket}, pair.First), c.maxOutputBufLen) == 0 {
			unmatched = append(unmatched, "outstream "+pair.String())
		}
	}
	for _, label := range c.cellOrder {
		for _, pair := range c.cells[label] {
			n := collect(data.match(bucketKey{kind: plainBucket, cell: label}, pair.First), math.MaxInt)
			if label == t.def.ComputationCell {
				n += collect(data.match(bucketKey{kind: heatingBucket, cell: label}, pair.First), math.MaxInt)
				n += collect(data.match(bucketKey{kind: coolingBucket, cell: label}, pair.Second), math.MaxInt)
			}
			if n == 0 {
				unmatched = append(unmatched, "cell <"+string(label)+"> "+pair.String())
			}
		}
	}
	collect(data.unindexed, math.MaxInt)
	t.metrics.CandidateRules.Observe(float64(len(result)))

	if t.audit != "" {
		if err := t.checkAudit(seen, unmatched); err != nil {
			return result, unmatched, err
		}
	}
	return result, unmatched, nil
}

func (t *Table) checkAudit(selected *set.Set[int], unmatched []string) error {
	r, ok := t.def.RuleByLabel(t.audit)
	if !ok || t.def.IsFunctionRule(r) || selected.Contains(r.Ordinal) {
		return nil
	}
	logger.Warn("audited rule not selected", "rule", t.audit, "unmatched", unmatched)
	return kerr.New(&kerr.IndexAuditError{Rule: t.audit, Unmatched: slices.Clone(unmatched)})
}
