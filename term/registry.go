package term

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cottand/ksym/kerr"
	"github.com/hashicorp/go-set/v3"
)

const (
	iteLabelName    = "#if_#then_#else_#fi"
	bottomLabelName = "#Bottom"
	sortPredicate   = "K.isSort"
)

// Registry is the arena of one definition: it interns sorts and labels so they
// can be compared by identity, owns the subsort lattice, and builds terms.
//
// It is safe for concurrent use. Label and cell metadata is expected to be
// declared before terms are rewritten concurrently.
type Registry struct {
	mu              sync.RWMutex
	sorts           map[string]*Sort
	sortsByOrdinal  []*Sort
	subsorts        map[*Sort]*set.Set[*Sort]
	labels          map[string]*KLabel
	labelsByOrdinal []*KLabel
	cells           map[CellLabel]Multiplicity

	glbMu    sync.Mutex
	glbCache map[[2]int]*Sort

	fresh atomic.Uint64

	Sorts BuiltinSorts

	hole        *Hole
	emptyK      *KSequence
	emptyBag    *CellCollection
	bottom      *KApply
	iteLabel    *KLabel
	bottomLabel *KLabel
}

func NewRegistry() *Registry {
	r := &Registry{
		sorts:    make(map[string]*Sort),
		subsorts: make(map[*Sort]*set.Set[*Sort]),
		labels:   make(map[string]*KLabel),
		cells:    make(map[CellLabel]Multiplicity),
		glbCache: make(map[[2]int]*Sort),
	}
	r.Sorts.K = r.Sort(SortK)
	r.Sorts.KItem = r.Sort(SortKItem)
	r.Sorts.KList = r.Sort(SortKList)
	r.Sorts.KLabel = r.Sort(SortKLabel)
	r.Sorts.Bag = r.Sort(SortBag)
	r.Sorts.Cell = r.Sort(SortCell)
	r.AddSubsort(r.Sorts.K, r.Sorts.KItem)
	r.AddSubsort(r.Sorts.Bag, r.Sorts.Cell)
	r.Sorts.Int = r.Sort(SortInt)
	r.Sorts.Bool = r.Sort(SortBool)
	r.Sorts.String = r.Sort(SortString)
	r.Sorts.Id = r.Sort(SortId)
	r.Sorts.Map = r.Sort(SortMap)
	r.Sorts.Set = r.Sort(SortSet)
	r.Sorts.List = r.Sort(SortList)

	r.hole = &Hole{sort: r.Sorts.KItem}
	r.emptyK = &KSequence{sort: r.Sorts.K, hash: hashString("#EmptyK"), ground: true}
	r.emptyBag = &CellCollection{sort: r.Sorts.Bag, hash: hashString("#EmptyBag"), ground: true}

	r.iteLabel = r.DeclareLabel(iteLabelName, LabelSpec{Function: true, Hook: "KEQUAL.ite"})
	r.iteLabel.ite = true
	r.bottomLabel = r.DeclareLabel(bottomLabelName, LabelSpec{
		Productions: []Production{{Result: r.Sorts.KItem}},
	})
	r.bottomLabel.bottom = true
	r.bottom = r.Apply(r.bottomLabel)
	return r
}

// Label returns the canonical label named name, creating a constructor label
// without productions when it does not exist yet.
//
// A name of the form "is" + S where S is a known sort denotes the sort
// membership predicate for S. There is no detection of a user label that
// accidentally shadows such a predicate.
func (r *Registry) Label(name string) *KLabel {
	r.mu.RLock()
	l, ok := r.labels[name]
	r.mu.RUnlock()
	if ok {
		return l
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.labelLocked(name)
}

func (r *Registry) labelLocked(name string) *KLabel {
	if l, ok := r.labels[name]; ok {
		return l
	}
	l := &KLabel{name: name, ordinal: len(r.labelsByOrdinal), reg: r}
	if sortName, ok := strings.CutPrefix(name, "is"); ok {
		if s, ok := r.sorts[sortName]; ok {
			l.function = true
			l.hook = sortPredicate
			l.predicateSort = s
			l.productions = []Production{{Args: []*Sort{r.Sorts.K}, Result: r.Sorts.Bool}}
		}
	}
	r.labels[name] = l
	r.labelsByOrdinal = append(r.labelsByOrdinal, l)
	return l
}

// DeclareLabel returns the canonical label for name and merges spec into its metadata
func (r *Registry) DeclareLabel(name string, spec LabelSpec) *KLabel {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.labelLocked(name)
	for _, p := range spec.Productions {
		if !slices.ContainsFunc(l.productions, p.equal) {
			l.productions = append(l.productions, p)
		}
	}
	l.function = l.function || spec.Function
	if spec.Hook != "" {
		l.hook = spec.Hook
	}
	return l
}

func (r *Registry) LookupLabel(name string) (*KLabel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.labels[name]
	return l, ok
}

// AllLabels returns every label in ordinal order
func (r *Registry) AllLabels() []*KLabel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.labelsByOrdinal)
}

// ResolveLabel is the label counterpart of ResolveSort
func (r *Registry) ResolveLabel(name string, ordinal int) (*KLabel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.labels[name]
	found := len(r.labelsByOrdinal)
	if ok {
		found = l.ordinal
	}
	if found != ordinal {
		return nil, kerr.New(&kerr.SnapshotError{What: "label", Name: name, Want: ordinal, Found: found})
	}
	if !ok {
		l = r.labelLocked(name)
	}
	return l, nil
}

// IteLabel is the label of #if _ #then _ #else _ #fi
func (r *Registry) IteLabel() *KLabel { return r.iteLabel }

// DeclareCell records the multiplicity of a cell label
func (r *Registry) DeclareCell(label CellLabel, m Multiplicity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells[label] = m
}

// Multiplicity of label, One when it was never declared
func (r *Registry) Multiplicity(label CellLabel) Multiplicity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cells[label]
}

// FreshVar returns an anonymous variable that has not been handed out before
func (r *Registry) FreshVar(sort *Sort) Variable {
	return r.Var(fmt.Sprintf("_%d", r.fresh.Add(1)), sort)
}

// FreshName derives an anonymous, unused name from base
func (r *Registry) FreshName(base string) string {
	return fmt.Sprintf("_%s%d", strings.TrimLeft(base, "_"), r.fresh.Add(1))
}
