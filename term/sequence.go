package term

import (
	"github.com/cottand/ksym/kerr"
)

// KSequence is a computation: KItems executed left to right, optionally
// followed by a frame standing for the rest of the computation
type KSequence struct {
	items       []Term
	frame       Term
	sort        *Sort
	hash        uint64
	ground      bool
	hasCell     bool
	hasFunction bool
}

// KSeq builds the canonical sequence of parts. Nested sequences are
// flattened and a K-kinded part may only come last, where it becomes the frame.
// The empty sequence is .K, and a single item without frame is the item itself.
func (r *Registry) KSeq(parts ...Term) Term {
	if len(parts) == 1 {
		if _, ok := parts[0].(*KSequence); !ok {
			return parts[0]
		}
	}
	var items []Term
	var frame Term
	for i, part := range parts {
		last := i == len(parts)-1
		switch part := part.(type) {
		case *KSequence:
			items = append(items, part.items...)
			if part.frame != nil {
				if !last {
					kerr.Invariant("sequence frame %v is not the last part of %v", part.frame, parts)
				}
				frame = part.frame
			}
			continue
		}
		if part.Kind() == KindK {
			if !last {
				kerr.Invariant("K-kinded %v is not the last part of a sequence", part)
			}
			frame = part
			continue
		}
		if part.Kind() != KindKItem {
			kerr.Invariant("cannot sequence %v of kind %v", part, part.Kind())
		}
		items = append(items, part)
	}
	switch {
	case len(items) == 0 && frame == nil:
		return r.emptyK
	case len(items) == 0:
		return frame
	case len(items) == 1 && frame == nil:
		return items[0]
	}
	return r.newKSequence(items, frame)
}

func (r *Registry) newKSequence(items []Term, frame Term) *KSequence {
	s := &KSequence{items: items, frame: frame, sort: r.Sorts.K, ground: frame == nil}
	s.hash = hashString("~>")
	for _, item := range items {
		s.hash = hashCombine(s.hash, item.Hash())
		s.ground = s.ground && item.IsGround()
		s.hasCell = s.hasCell || item.HasCell()
		s.hasFunction = s.hasFunction || item.HasFunction()
	}
	if frame != nil {
		s.hash = hashCombine(s.hash, frame.Hash())
		s.hasFunction = s.hasFunction || frame.HasFunction()
	}
	return s
}

// EmptyK is .K
func (r *Registry) EmptyK() *KSequence { return r.emptyK }

func (s *KSequence) Items() []Term { return s.items }

// Frame is the K-kinded tail of the sequence, or nil
func (s *KSequence) Frame() Term       { return s.frame }
func (s *KSequence) Sort() *Sort       { return s.sort }
func (s *KSequence) Kind() Kind        { return KindK }
func (s *KSequence) IsExactSort() bool { return s.frame == nil }
func (s *KSequence) IsGround() bool    { return s.ground }
func (s *KSequence) HasCell() bool     { return s.hasCell }
func (s *KSequence) HasFunction() bool { return s.hasFunction }
func (s *KSequence) Hash() uint64      { return s.hash }
func (s *KSequence) IsEmpty() bool     { return len(s.items) == 0 && s.frame == nil }
func (*KSequence) isTerm()             {}

// AsSequence views any K or KItem term as items plus frame
func AsSequence(t Term) (items []Term, frame Term) {
	switch t := t.(type) {
	case *KSequence:
		return t.items, t.frame
	}
	if t.Kind() == KindK {
		return nil, t
	}
	return []Term{t}, nil
}
