package term

import (
	"cmp"
	"slices"
)

type MapEntry struct {
	Key, Value Term
}

// BuiltinMap is a finite map of explicit entries plus an optional frame for
// the unknown remainder. Entries are kept sorted by key hash.
type BuiltinMap struct {
	entries     []MapEntry
	frame       Term
	sort        *Sort
	hash        uint64
	ground      bool
	hasFunction bool
}

// Map builds a map from entries and frame. A frame that is itself a map is
// merged in. Two entries with equal keys and different values, which a
// substitution can produce from distinct symbolic keys, make the map
// undefined: the result is Bottom.
func (r *Registry) Map(entries []MapEntry, frame Term) Term {
	if IsBottom(frame) {
		return r.bottom
	}
	if m, ok := frame.(*BuiltinMap); ok {
		entries = append(slices.Clone(entries), m.entries...)
		frame = m.frame
	}
	if len(entries) == 0 && frame != nil {
		return frame
	}
	entries = slices.Clone(entries)
	slices.SortStableFunc(entries, func(a, b MapEntry) int { return cmp.Compare(a.Key.Hash(), b.Key.Hash()) })
	for i := range entries {
		for _, later := range entries[i+1:] {
			if later.Key.Hash() != entries[i].Key.Hash() {
				break
			}
			if Equal(later.Key, entries[i].Key) && !Equal(later.Value, entries[i].Value) {
				return r.bottom
			}
		}
	}
	entries = slices.CompactFunc(entries, func(a, b MapEntry) bool {
		return Equal(a.Key, b.Key)
	})

	m := &BuiltinMap{entries: entries, frame: frame, sort: r.Sorts.Map, ground: frame == nil}
	m.hash = hashString("#Map")
	for _, e := range entries {
		m.hash = hashCombine(hashCombine(m.hash, e.Key.Hash()), e.Value.Hash())
		m.ground = m.ground && e.Key.IsGround() && e.Value.IsGround()
		m.hasFunction = m.hasFunction || e.Key.HasFunction() || e.Value.HasFunction()
	}
	if frame != nil {
		m.hash = hashCombine(m.hash, frame.Hash())
		m.hasFunction = m.hasFunction || frame.HasFunction()
	}
	return m
}

func (m *BuiltinMap) Entries() []MapEntry { return m.entries }
func (m *BuiltinMap) Frame() Term         { return m.frame }
func (m *BuiltinMap) Sort() *Sort         { return m.sort }
func (m *BuiltinMap) Kind() Kind          { return KindKItem }
func (m *BuiltinMap) IsExactSort() bool   { return true }
func (m *BuiltinMap) IsGround() bool      { return m.ground }
func (m *BuiltinMap) HasCell() bool       { return false }
func (m *BuiltinMap) HasFunction() bool   { return m.hasFunction }
func (m *BuiltinMap) Hash() uint64        { return m.hash }
func (m *BuiltinMap) IsConcrete() bool    { return m.frame == nil }
func (*BuiltinMap) isTerm()               {}

// Get returns the value bound to an entry whose key is equal to key
func (m *BuiltinMap) Get(key Term) (Term, bool) {
	for _, e := range m.entries {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

type BuiltinSet struct {
	elements    []Term
	frame       Term
	sort        *Sort
	hash        uint64
	ground      bool
	hasFunction bool
}

// Set builds a set from elements and frame, dropping duplicate elements and
// merging a frame that is itself a set
func (r *Registry) Set(elements []Term, frame Term) Term {
	if s, ok := frame.(*BuiltinSet); ok {
		elements = append(slices.Clone(elements), s.elements...)
		frame = s.frame
	}
	if len(elements) == 0 && frame != nil {
		return frame
	}
	elements = slices.Clone(elements)
	slices.SortStableFunc(elements, func(a, b Term) int { return cmp.Compare(a.Hash(), b.Hash()) })
	elements = slices.CompactFunc(elements, Equal)

	s := &BuiltinSet{elements: elements, frame: frame, sort: r.Sorts.Set, ground: frame == nil}
	s.hash = hashString("#Set")
	for _, e := range elements {
		s.hash = hashCombine(s.hash, e.Hash())
		s.ground = s.ground && e.IsGround()
		s.hasFunction = s.hasFunction || e.HasFunction()
	}
	if frame != nil {
		s.hash = hashCombine(s.hash, frame.Hash())
		s.hasFunction = s.hasFunction || frame.HasFunction()
	}
	return s
}

func (s *BuiltinSet) Elements() []Term  { return s.elements }
func (s *BuiltinSet) Frame() Term       { return s.frame }
func (s *BuiltinSet) Sort() *Sort       { return s.sort }
func (s *BuiltinSet) Kind() Kind        { return KindKItem }
func (s *BuiltinSet) IsExactSort() bool { return true }
func (s *BuiltinSet) IsGround() bool    { return s.ground }
func (s *BuiltinSet) HasCell() bool     { return false }
func (s *BuiltinSet) HasFunction() bool { return s.hasFunction }
func (s *BuiltinSet) Hash() uint64      { return s.hash }
func (s *BuiltinSet) IsConcrete() bool  { return s.frame == nil }
func (*BuiltinSet) isTerm()             {}

func (s *BuiltinSet) Contains(element Term) bool {
	return slices.ContainsFunc(s.elements, func(e Term) bool { return Equal(e, element) })
}

// BuiltinList is a sequence of elements followed by an optional frame
type BuiltinList struct {
	elements    []Term
	frame       Term
	sort        *Sort
	hash        uint64
	ground      bool
	hasFunction bool
}

// List builds a list; a frame that is itself a list is appended
func (r *Registry) List(elements []Term, frame Term) Term {
	if l, ok := frame.(*BuiltinList); ok {
		elements = append(slices.Clone(elements), l.elements...)
		frame = l.frame
	}
	if len(elements) == 0 && frame != nil {
		return frame
	}
	l := &BuiltinList{elements: slices.Clone(elements), frame: frame, sort: r.Sorts.List, ground: frame == nil}
	l.hash = hashString("#List")
	for _, e := range l.elements {
		l.hash = hashCombine(l.hash, e.Hash())
		l.ground = l.ground && e.IsGround()
		l.hasFunction = l.hasFunction || e.HasFunction()
	}
	if frame != nil {
		l.hash = hashCombine(l.hash, frame.Hash())
		l.hasFunction = l.hasFunction || frame.HasFunction()
	}
	return l
}

func (l *BuiltinList) Elements() []Term  { return l.elements }
func (l *BuiltinList) Frame() Term       { return l.frame }
func (l *BuiltinList) Sort() *Sort       { return l.sort }
func (l *BuiltinList) Kind() Kind        { return KindKItem }
func (l *BuiltinList) IsExactSort() bool { return true }
func (l *BuiltinList) IsGround() bool    { return l.ground }
func (l *BuiltinList) HasCell() bool     { return false }
func (l *BuiltinList) HasFunction() bool { return l.hasFunction }
func (l *BuiltinList) Hash() uint64      { return l.hash }
func (l *BuiltinList) IsConcrete() bool  { return l.frame == nil }
func (*BuiltinList) isTerm()             {}

// ConcreteSize is the number of elements when the collection has no frame
func ConcreteSize(t Term) (int, bool) {
	switch t := t.(type) {
	case *BuiltinMap:
		return len(t.entries), t.frame == nil
	case *BuiltinSet:
		return len(t.elements), t.frame == nil
	case *BuiltinList:
		return len(t.elements), t.frame == nil
	case *CellCollection:
		return len(t.cells), len(t.frames) == 0
	case *KSequence:
		return len(t.items), t.frame == nil
	}
	return 0, false
}

// IsCollection is true for maps, sets, lists and cell collections
func IsCollection(t Term) bool {
	switch t.(type) {
	case *BuiltinMap, *BuiltinSet, *BuiltinList, *CellCollection:
		return true
	}
	return false
}
