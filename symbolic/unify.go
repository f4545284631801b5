package symbolic

import (
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/cottand/ksym/util"
)

// obligation is a pair of terms to be made equal. A residual obligation
// goes to the constraint as is instead of being decomposed.
type obligation struct {
	lhs, rhs term.Term
	residual bool
}

type branch struct {
	constraint *Constraint
	work       *util.Stack[obligation]
}

func (b *branch) Copy() *branch {
	return &branch{constraint: b.constraint.Copy(), work: b.work.Copy()}
}

func (b *branch) push(obs ...obligation) {
	b.work.Push(obs...)
}

// Unify returns the constraints under which a and b are equal, one for each
// way of matching their associative-commutative parts. Terms of
// incompatible kinds have no unifier.
func (ctx *Context) Unify(a, b term.Term) []*Constraint {
	if !a.Kind().CompatibleWith(b.Kind()) {
		return nil
	}
	start := &branch{constraint: New(ctx), work: &util.Stack[obligation]{}}
	start.constraint.batch = true
	start.push(obligation{lhs: a, rhs: b})
	return ctx.run(start)
}

func (ctx *Context) run(b *branch) []*Constraint {
	for {
		ob, ok := b.work.Pop()
		if !ok {
			b.constraint.endBatch()
			if b.constraint.IsFalse() {
				return nil
			}
			return []*Constraint{b.constraint}
		}
		alternatives, ok := ctx.step(b, ob)
		if !ok || b.constraint.IsFalseNoNormalize() {
			return nil
		}
		switch len(alternatives) {
		case 0:
		case 1:
			b.push(alternatives[0]...)
		default:
			var solutions []*Constraint
			for _, alt := range alternatives {
				fork := b.Copy()
				fork.constraint.batch = true
				fork.push(alt...)
				solutions = append(solutions, ctx.run(fork)...)
			}
			return solutions
		}
	}
}

// step decomposes one obligation. It returns false when the obligation cannot
// hold, or the alternative sets of obligations it splits into.
func (ctx *Context) step(b *branch, ob obligation) ([][]obligation, bool) {
	c := b.constraint
	lhs, rhs := c.apply(ob.lhs), c.apply(ob.rhs)
	if term.Equal(lhs, rhs) {
		return nil, true
	}
	if !lhs.Kind().CompatibleWith(rhs.Kind()) {
		return nil, false
	}
	residual := func() ([][]obligation, bool) {
		c.Add(lhs, rhs)
		return nil, !c.IsFalseNoNormalize()
	}
	if ob.residual {
		return residual()
	}
	_, lv := lhs.(term.Variable)
	_, rv := rhs.(term.Variable)
	if lv || rv || term.IsFunctionCall(lhs) || term.IsFunctionCall(rhs) {
		return residual()
	}
	if ctx.Truth(Equality{LHS: lhs, RHS: rhs}) == False {
		return nil, false
	}

	switch l := lhs.(type) {
	case *term.KApply:
		r, ok := rhs.(*term.KApply)
		if !ok {
			break
		}
		return [][]obligation{pairwise(l.Args(), r.Args())}, true
	case *term.Cell:
		r, ok := rhs.(*term.Cell)
		if !ok {
			break
		}
		return [][]obligation{{{lhs: l.Content(), rhs: r.Content()}}}, true
	case *term.BuiltinList:
		r, ok := rhs.(*term.BuiltinList)
		if !ok {
			break
		}
		return ctx.alignSequences(l.Elements(), l.Frame(), r.Elements(), r.Frame(), func(items []term.Term, frame term.Term) term.Term {
			return ctx.Registry.List(items, frame)
		})
	case *term.BuiltinMap:
		if r, ok := rhs.(*term.BuiltinMap); ok {
			return ctx.matchMaps(l, r)
		}
	case *term.BuiltinSet:
		if r, ok := rhs.(*term.BuiltinSet); ok {
			return ctx.matchSets(l, r)
		}
	case *term.CellCollection:
		if r := asBag(ctx.Registry, rhs); r != nil {
			return ctx.matchBags(l, r)
		}
		return residual()
	}
	if rb, ok := rhs.(*term.CellCollection); ok {
		if l := asBag(ctx.Registry, lhs); l != nil {
			return ctx.matchBags(l, rb)
		}
		return residual()
	}
	if lhs.Kind() == term.KindK || rhs.Kind() == term.KindK {
		li, lf := term.AsSequence(lhs)
		ri, rf := term.AsSequence(rhs)
		return ctx.alignSequences(li, lf, ri, rf, func(items []term.Term, frame term.Term) term.Term {
			if frame != nil {
				items = append(items, frame)
			}
			return ctx.Registry.KSeq(items...)
		})
	}
	return residual()
}

func pairwise(as, bs []term.Term) []obligation {
	obs := make([]obligation, len(as))
	for i := range as {
		obs[i] = obligation{lhs: as[i], rhs: bs[i]}
	}
	return obs
}

// alignSequences matches items from the left. What is left of the longer
// side goes to the frame of the shorter one.
func (ctx *Context) alignSequences(li []term.Term, lf term.Term, ri []term.Term, rf term.Term, build func([]term.Term, term.Term) term.Term) ([][]obligation, bool) {
	n := min(len(li), len(ri))
	for _, items := range [][]term.Term{li[:n], ri[:n]} {
		for _, item := range items {
			if item.Kind() == term.KindK {
				kerr.Invariant("sequence item %s of kind K", item)
			}
		}
	}
	obs := pairwise(li[:n], ri[:n])
	restL, restR := li[n:], ri[n:]
	switch {
	case len(restL) == 0 && len(restR) == 0:
		switch {
		case lf == nil && rf == nil:
		case lf == nil:
			obs = append(obs, obligation{lhs: rf, rhs: build(nil, nil), residual: true})
		case rf == nil:
			obs = append(obs, obligation{lhs: lf, rhs: build(nil, nil), residual: true})
		default:
			obs = append(obs, obligation{lhs: lf, rhs: rf, residual: true})
		}
	case len(restR) == 0:
		if rf == nil {
			return nil, false
		}
		obs = append(obs, obligation{lhs: rf, rhs: build(restL, lf), residual: true})
	default:
		if lf == nil {
			return nil, false
		}
		obs = append(obs, obligation{lhs: lf, rhs: build(restR, rf), residual: true})
	}
	return [][]obligation{obs}, true
}

func asBag(r *term.Registry, t term.Term) *term.CellCollection {
	switch t := t.(type) {
	case *term.CellCollection:
		return t
	case *term.Cell:
		if bag, ok := r.Bag(t).(*term.CellCollection); ok {
			return bag
		}
	}
	return nil
}
