package term

import (
	"slices"
	"strings"

	"github.com/cottand/ksym/kerr"
	"github.com/hashicorp/go-set/v3"
)

const (
	SortK      = "K"
	SortKItem  = "KItem"
	SortKList  = "KList"
	SortKLabel = "KLabel"
	SortBag    = "Bag"
	SortCell   = "Cell"
	SortInt    = "Int"
	SortBool   = "Bool"
	SortString = "String"
	SortId     = "Id"
	SortMap    = "Map"
	SortSet    = "Set"
	SortList   = "List"
)

// sorts that are not below KItem
var structuralSorts = []string{SortK, SortKItem, SortKList, SortKLabel, SortBag, SortCell}

// Sort is interned by its Registry: two sorts with the same name and
// parameters in one Registry are the same pointer
type Sort struct {
	name    string
	params  []*Sort
	ordinal int
}

func (s *Sort) Name() string    { return s.name }
func (s *Sort) Ordinal() int    { return s.ordinal }
func (s *Sort) Params() []*Sort { return s.params }

func (s *Sort) String() string {
	return sortKey(s.name, s.params)
}

func sortKey(name string, params []*Sort) string {
	if len(params) == 0 {
		return name
	}
	sb := strings.Builder{}
	sb.WriteString(name)
	sb.WriteString("{")
	for i, p := range params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString("}")
	return sb.String()
}

// BuiltinSorts are created by every Registry with fixed ordinals
type BuiltinSorts struct {
	K, KItem, KList, KLabel, Bag, Cell    *Sort
	Int, Bool, String, Id, Map, Set, List *Sort
}

// Sort returns the canonical sort for name and params, creating it if needed.
// A new sort is a subsort of KItem unless it is one of the structural sorts.
func (r *Registry) Sort(name string, params ...*Sort) *Sort {
	key := sortKey(name, params)
	r.mu.RLock()
	s, ok := r.sorts[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortLocked(name, params)
}

func (r *Registry) sortLocked(name string, params []*Sort) *Sort {
	key := sortKey(name, params)
	if s, ok := r.sorts[key]; ok {
		return s
	}
	s := &Sort{name: name, params: params, ordinal: len(r.sortsByOrdinal)}
	r.sorts[key] = s
	r.sortsByOrdinal = append(r.sortsByOrdinal, s)
	r.subsorts[s] = set.New[*Sort](0)
	if !slices.Contains(structuralSorts, name) && r.Sorts.KItem != nil {
		r.addSubsortLocked(r.Sorts.KItem, s)
	}
	return s
}

// LookupSort returns the sort named name, if it exists
func (r *Registry) LookupSort(name string) (*Sort, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sorts[name]
	return s, ok
}

// AllSorts returns every sort in ordinal order
func (r *Registry) AllSorts() []*Sort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sortsByOrdinal)
}

// AddSubsort declares small < big and keeps the relation transitively closed
func (r *Registry) AddSubsort(big, small *Sort) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addSubsortLocked(big, small)
}

func (r *Registry) addSubsortLocked(big, small *Sort) {
	if big == small || r.subsorts[big].Contains(small) {
		return
	}
	below := r.subsorts[small].Copy()
	below.Insert(small)
	for _, s := range r.sortsByOrdinal {
		if s == big || r.subsorts[s].Contains(big) {
			r.subsorts[s].InsertSet(below)
		}
	}
	clear(r.glbCache)
}

// IsSubsorted reports whether small < big strictly
func (r *Registry) IsSubsorted(big, small *Sort) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subsorts[big].Contains(small)
}

// IsSubsortedEq reports whether small <= big
func (r *Registry) IsSubsortedEq(big, small *Sort) bool {
	return big == small || r.IsSubsorted(big, small)
}

// Subsorts returns every strict subsort of s
func (r *Registry) Subsorts(s *Sort) []*Sort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.subsorts[s].Slice()
	slices.SortFunc(subs, func(a, b *Sort) int { return a.ordinal - b.ordinal })
	return subs
}

// Compatible reports whether some term can have both sorts
func (r *Registry) Compatible(a, b *Sort) bool {
	if r.IsSubsortedEq(a, b) || r.IsSubsortedEq(b, a) {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.subsorts[a].Intersect(r.subsorts[b]).Empty()
}

// GLB returns the greatest lower bound of a and b, or nil when there is no
// common subsort or the maximal common subsorts are not unique
func (r *Registry) GLB(a, b *Sort) *Sort {
	if r.IsSubsortedEq(b, a) {
		return a
	}
	if r.IsSubsortedEq(a, b) {
		return b
	}
	key := [2]int{min(a.ordinal, b.ordinal), max(a.ordinal, b.ordinal)}
	r.glbMu.Lock()
	glb, ok := r.glbCache[key]
	r.glbMu.Unlock()
	if ok {
		return glb
	}

	r.mu.RLock()
	common := r.subsorts[a].Intersect(r.subsorts[b]).Slice()
	var maximal []*Sort
	for _, c := range common {
		dominated := false
		for _, other := range common {
			if other != c && r.subsorts[other].Contains(c) {
				dominated = true
				break
			}
		}
		if !dominated {
			maximal = append(maximal, c)
		}
	}
	r.mu.RUnlock()

	if len(maximal) == 1 {
		glb = maximal[0]
	}
	r.glbMu.Lock()
	r.glbCache[key] = glb
	r.glbMu.Unlock()
	return glb
}

// ResolveSort looks the sort up by name and checks it against a persisted ordinal.
// A missing sort is created only when the persisted ordinal is the next free
// one, so a snapshot that does not agree leaves the registry as it was.
func (r *Registry) ResolveSort(name string, ordinal int) (*Sort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sorts[sortKey(name, nil)]
	found := len(r.sortsByOrdinal)
	if ok {
		found = s.ordinal
	}
	if found != ordinal {
		return nil, kerr.New(&kerr.SnapshotError{What: "sort", Name: name, Want: ordinal, Found: found})
	}
	if !ok {
		s = r.sortLocked(name, nil)
	}
	return s, nil
}
