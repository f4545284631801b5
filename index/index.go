// Package index selects, for a configuration, the rules whose left-hand side
// can plausibly match it.
package index

import (
	"fmt"

	"github.com/cottand/ksym/term"
)

type Kind uint8

const (
	KindTop Kind = iota
	KindBottom
	KindLabel
	KindToken
	KindFreezer
)

// Index abstracts the head shape of a term. It is comparable and can be used as a map key.
type Index struct {
	kind     Kind
	label    *term.KLabel
	sort     *term.Sort
	position int
}

var (
	Top    = Index{kind: KindTop}
	Bottom = Index{kind: KindBottom}
)

func LabelIndex(l *term.KLabel) Index { return Index{kind: KindLabel, label: l} }
func TokenIndex(s *term.Sort) Index   { return Index{kind: KindToken, sort: s} }

// FreezerIndex is a heated computation frozen at position; position -1
// stands for every position of label
func FreezerIndex(l *term.KLabel, position int) Index {
	return Index{kind: KindFreezer, label: l, position: position}
}

func (i Index) Kind() Kind           { return i.kind }
func (i Index) Label() *term.KLabel { return i.label }
func (i Index) Sort() *term.Sort    { return i.sort }
func (i Index) Position() int       { return i.position }

// IsUnifiable reports whether a term with index i may unify with a term with index o.
// Top unifies with everything and Bottom only with Bottom and Top. A label
// unifies with itself and with freezers of the same label, since a pattern
// argument may be instantiated by the hole. Freezers of one label unify when
// their positions agree or one of them is the wildcard position -1. Tokens
// unify when their sorts are the same.
func (i Index) IsUnifiable(o Index) bool {
	if i.kind == KindTop || o.kind == KindTop {
		return true
	}
	switch i.kind {
	case KindBottom:
		return o.kind == KindBottom
	case KindToken:
		return o.kind == KindToken && i.sort == o.sort
	case KindLabel:
		return (o.kind == KindLabel || o.kind == KindFreezer) && i.label == o.label
	case KindFreezer:
		switch o.kind {
		case KindLabel:
			return i.label == o.label
		case KindFreezer:
			return i.label == o.label && (i.position == o.position || i.position == -1 || o.position == -1)
		}
	}
	return false
}

func (i Index) String() string {
	switch i.kind {
	case KindTop:
		return "Top"
	case KindBottom:
		return "Bottom"
	case KindLabel:
		return "Label(" + i.label.String() + ")"
	case KindToken:
		return "Token(" + i.sort.String() + ")"
	case KindFreezer:
		return fmt.Sprintf("Freezer(%s, %d)", i.label, i.position)
	}
	return "?"
}

// Of returns the index of the head of t
func Of(t term.Term) Index {
	switch t := t.(type) {
	case *term.KApply:
		if t.IsFunctionCall() || term.IsBottom(t) {
			return Top
		}
		if pos := t.HolePosition(); pos >= 0 {
			return FreezerIndex(t.Label(), pos)
		}
		return LabelIndex(t.Label())
	case *term.Token:
		return TokenIndex(t.Sort())
	case *term.BuiltinMap, *term.BuiltinSet, *term.BuiltinList:
		return TokenIndex(t.Sort())
	case *term.KSequence:
		if t.IsEmpty() {
			return Bottom
		}
		items, frame := term.AsSequence(t)
		if len(items) == 0 {
			return Of(frame)
		}
		return Of(items[0])
	}
	return Top
}

// IndexingPair is the index of the first and of the second element of a
// computation or buffer
type IndexingPair struct {
	First, Second Index
}

func (p IndexingPair) String() string {
	return fmt.Sprintf("(%v, %v)", p.First, p.Second)
}

// SequencePair indexes the first two items of a K cell. A frame stands for
// anything, and running out of items yields Bottom.
func SequencePair(content term.Term) IndexingPair {
	items, frame := term.AsSequence(content)
	at := func(i int) Index {
		if i < len(items) {
			return Of(items[i])
		}
		if frame != nil {
			return Top
		}
		return Bottom
	}
	if len(items) > 0 && term.IsFunctionCall(items[0]) {
		// the call may evaluate to a sequence of any length
		return IndexingPair{Top, Top}
	}
	return IndexingPair{First: at(0), Second: at(1)}
}

// head and tail indices of a buffer list
func bufferEnds(content term.Term) (head, tail Index) {
	l, ok := content.(*term.BuiltinList)
	if !ok {
		return Top, Top
	}
	elems := l.Elements()
	switch {
	case len(elems) == 0:
		if l.Frame() != nil {
			return Top, Top
		}
		return Bottom, Bottom
	case l.Frame() != nil:
		return Of(elems[0]), Top
	}
	return Of(elems[0]), Of(elems[len(elems)-1])
}

// InstreamPair puts the next element to be read in Second
func InstreamPair(content term.Term) IndexingPair {
	head, tail := bufferEnds(content)
	return IndexingPair{First: tail, Second: head}
}

// OutstreamPair puts the next element to be flushed in First
func OutstreamPair(content term.Term) IndexingPair {
	head, tail := bufferEnds(content)
	return IndexingPair{First: head, Second: tail}
}
