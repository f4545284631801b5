package index

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/pkg/errors"
)

// Snapshot is the serializable form of a built Table. Labels and sorts are
// stored by name and ordinal, rules by ordinal.
type Snapshot struct {
	Buckets   []BucketSnapshot
	Unindexed []int
}

type BucketSnapshot struct {
	Kind  uint8
	Cell  string
	Index IndexSnapshot
	Rules []int
}

type IndexSnapshot struct {
	Kind         uint8
	Label        string
	LabelOrdinal int
	Sort         string
	SortOrdinal  int
	Position     int
}

func snapshotIndex(i Index) IndexSnapshot {
	s := IndexSnapshot{Kind: uint8(i.kind), Position: i.position}
	if i.label != nil {
		s.Label, s.LabelOrdinal = i.label.Name(), i.label.Ordinal()
	}
	if i.sort != nil {
		s.Sort, s.SortOrdinal = i.sort.String(), i.sort.Ordinal()
	}
	return s
}

func restoreIndex(s IndexSnapshot, reg *term.Registry) (Index, error) {
	i := Index{kind: Kind(s.Kind), position: s.Position}
	var err error
	if s.Label != "" {
		if i.label, err = reg.ResolveLabel(s.Label, s.LabelOrdinal); err != nil {
			return Index{}, err
		}
	}
	if s.Sort != "" {
		if i.sort, err = reg.ResolveSort(s.Sort, s.SortOrdinal); err != nil {
			return Index{}, err
		}
	}
	return i, nil
}

func ordinals(rules []*definition.Rule) []int {
	out := make([]int, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Ordinal)
	}
	return out
}

// Snapshot builds the table if needed and returns its serializable form.
// Buckets are sorted so equal tables give equal snapshots.
func (t *Table) Snapshot() *Snapshot {
	data := t.load()
	s := &Snapshot{Unindexed: ordinals(data.unindexed)}
	for key, bucket := range data.buckets {
		for index, rules := range bucket {
			s.Buckets = append(s.Buckets, BucketSnapshot{
				Kind:  uint8(key.kind),
				Cell:  string(key.cell),
				Index: snapshotIndex(index),
				Rules: ordinals(rules),
			})
		}
	}
	slices.SortFunc(s.Buckets, func(a, b BucketSnapshot) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		if a.Cell != b.Cell {
			return strings.Compare(a.Cell, b.Cell)
		}
		if a.Index.Kind != b.Index.Kind {
			return int(a.Index.Kind) - int(b.Index.Kind)
		}
		if a.Index.LabelOrdinal != b.Index.LabelOrdinal {
			return a.Index.LabelOrdinal - b.Index.LabelOrdinal
		}
		if a.Index.SortOrdinal != b.Index.SortOrdinal {
			return a.Index.SortOrdinal - b.Index.SortOrdinal
		}
		return a.Index.Position - b.Index.Position
	})
	return s
}

// Restore returns a built table over def with the content of s. Labels and
// sorts must resolve to the same ordinals in the registry of def, and every
// rule ordinal must exist in def.
func Restore(def *definition.Definition, s *Snapshot, opts ...Option) (*Table, error) {
	rules := def.Rules()
	rule := func(ordinal int) (*definition.Rule, error) {
		if ordinal < 0 || ordinal >= len(rules) || rules[ordinal].Ordinal != ordinal {
			return nil, kerr.New(&kerr.SnapshotError{What: "rule", Name: "#" + strconv.Itoa(ordinal), Want: ordinal, Found: -1})
		}
		return rules[ordinal], nil
	}

	data := &tableData{buckets: make(map[bucketKey]map[Index][]*definition.Rule)}
	for _, b := range s.Buckets {
		index, err := restoreIndex(b.Index, def.Registry)
		if err != nil {
			return nil, errors.Wrap(err, "restoring index table")
		}
		key := bucketKey{kind: bucketKind(b.Kind), cell: term.CellLabel(b.Cell)}
		bucket, ok := data.buckets[key]
		if !ok {
			bucket = make(map[Index][]*definition.Rule)
			data.buckets[key] = bucket
		}
		for _, ordinal := range b.Rules {
			r, err := rule(ordinal)
			if err != nil {
				return nil, err
			}
			bucket[index] = append(bucket[index], r)
		}
	}
	for _, ordinal := range s.Unindexed {
		r, err := rule(ordinal)
		if err != nil {
			return nil, err
		}
		data.unindexed = append(data.unindexed, r)
	}

	t := NewTable(def, opts...)
	t.data.Store(data)
	return t, nil
}
