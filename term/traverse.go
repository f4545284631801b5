package term

import (
	"iter"

	"github.com/hashicorp/go-set/v3"
)

// Substitution binds variables to terms
type Substitution map[Variable]Term

// Children yields the direct sub-terms of t in order
func Children(t Term) iter.Seq[Term] {
	return func(yield func(Term) bool) {
		var children []Term
		switch t := t.(type) {
		case *KApply:
			children = t.args
		case *KSequence:
			children = t.items
			if t.frame != nil {
				children = append(children[:len(children):len(children)], t.frame)
			}
		case *Cell:
			children = []Term{t.content}
		case *CellCollection:
			for _, c := range t.cells {
				children = append(children, c)
			}
			for _, f := range t.frames {
				children = append(children, f)
			}
		case *BuiltinMap:
			for _, e := range t.entries {
				children = append(children, e.Key, e.Value)
			}
			if t.frame != nil {
				children = append(children, t.frame)
			}
		case *BuiltinSet, *BuiltinList:
			var frame Term
			if s, ok := t.(*BuiltinSet); ok {
				children, frame = s.elements, s.frame
			} else {
				l := t.(*BuiltinList)
				children, frame = l.elements, l.frame
			}
			if frame != nil {
				children = append(children[:len(children):len(children)], frame)
			}
		}
		for _, c := range children {
			if !yield(c) {
				return
			}
		}
	}
}

// Visit walks t in pre-order. Returning false from f skips the children of the visited term.
func Visit(t Term, f func(Term) bool) {
	if !f(t) {
		return
	}
	for c := range Children(t) {
		Visit(c, f)
	}
}

// Transform rebuilds t bottom-up, replacing every node n by f(n) after its
// children have been transformed. Nodes whose children did not change are
// not reallocated.
func (r *Registry) Transform(t Term, f func(Term) Term) Term {
	return f(r.rebuild(t, func(c Term) Term { return r.Transform(c, f) }))
}

func (r *Registry) rebuild(t Term, child func(Term) Term) Term {
	changed := false
	mapAll := func(ts []Term) []Term {
		out := make([]Term, len(ts))
		for i, c := range ts {
			out[i] = child(c)
			changed = changed || out[i] != c
		}
		return out
	}
	mapOpt := func(c Term) Term {
		if c == nil {
			return nil
		}
		n := child(c)
		changed = changed || n != c
		return n
	}

	switch t := t.(type) {
	case *KApply:
		args := mapAll(t.args)
		if changed {
			return r.Apply(t.label, args...)
		}
	case *KSequence:
		items := mapAll(t.items)
		frame := mapOpt(t.frame)
		if changed {
			if frame != nil {
				items = append(items, frame)
			}
			return r.KSeq(items...)
		}
	case *Cell:
		content := mapOpt(t.content)
		if changed {
			return r.Cell(t.label, content)
		}
	case *CellCollection:
		parts := make([]Term, 0, len(t.cells)+len(t.frames))
		for _, c := range t.cells {
			parts = append(parts, mapOpt(c))
		}
		for _, f := range t.frames {
			parts = append(parts, mapOpt(f))
		}
		if changed {
			return r.Bag(parts...)
		}
	case *BuiltinMap:
		entries := make([]MapEntry, len(t.entries))
		for i, e := range t.entries {
			entries[i] = MapEntry{Key: mapOpt(e.Key), Value: mapOpt(e.Value)}
		}
		frame := mapOpt(t.frame)
		if changed {
			return r.Map(entries, frame)
		}
	case *BuiltinSet:
		elements := mapAll(t.elements)
		frame := mapOpt(t.frame)
		if changed {
			return r.Set(elements, frame)
		}
	case *BuiltinList:
		elements := mapAll(t.elements)
		frame := mapOpt(t.frame)
		if changed {
			return r.List(elements, frame)
		}
	}
	return t
}

// Substitute replaces every variable bound in subst. Ground sub-terms are not visited.
func (r *Registry) Substitute(t Term, subst Substitution) Term {
	if len(subst) == 0 || t.IsGround() {
		return t
	}
	if v, ok := t.(Variable); ok {
		if bound, ok := subst[v]; ok {
			return bound
		}
		return v
	}
	return r.rebuild(t, func(c Term) Term { return r.Substitute(c, subst) })
}

// Rename is Substitute restricted to variable-for-variable bindings
func (r *Registry) Rename(t Term, renaming map[Variable]Variable) Term {
	subst := make(Substitution, len(renaming))
	for from, to := range renaming {
		subst[from] = to
	}
	return r.Substitute(t, subst)
}

// Replace substitutes to for every occurrence of from in t
func (r *Registry) Replace(t, from, to Term) Term {
	if Equal(t, from) {
		return to
	}
	return r.rebuild(t, func(c Term) Term { return r.Replace(c, from, to) })
}

// Variables returns the free variables of t
func Variables(t Term) *set.Set[Variable] {
	vars := set.New[Variable](0)
	CollectVariables(t, vars)
	return vars
}

// CollectVariables adds the variables of t to into
func CollectVariables(t Term, into *set.Set[Variable]) {
	Visit(t, func(t Term) bool {
		if v, ok := t.(Variable); ok {
			into.Insert(v)
		}
		return !t.IsGround()
	})
}

// FindInnermost returns the deepest, leftmost sub-term of t satisfying pred, or nil
func FindInnermost(t Term, pred func(Term) bool) Term {
	for c := range Children(t) {
		if found := FindInnermost(c, pred); found != nil {
			return found
		}
	}
	if pred(t) {
		return t
	}
	return nil
}

// ContainsFunction is true when t has a function call that could still be evaluated
func ContainsFunction(t Term) bool { return t.HasFunction() }

// FindCells returns every cell labelled label in t, outermost first
func FindCells(t Term, label CellLabel) []*Cell {
	var found []*Cell
	Visit(t, func(t Term) bool {
		if c, ok := t.(*Cell); ok && c.label == label {
			found = append(found, c)
		}
		return t.HasCell()
	})
	return found
}
