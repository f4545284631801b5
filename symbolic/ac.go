package symbolic

import (
	"slices"

	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
)

// pairing says whether an element of one collection can be the same element
// as one of the other. A forced pairing is the only one possible for both.
type pairing uint8

const (
	impossible pairing = iota
	possible
	forced
)

type acSide[E any] struct {
	elements []E
	frame    term.Term
}

// acMatch enumerates the ways of matching the elements of two collections.
// Every element is paired with one of the other side or left to the frame of
// the other side. Each way gives one alternative set of obligations.
func acMatch[E any](
	left, right acSide[E],
	canPair func(a, b E) pairing,
	pair func(a, b E) []obligation,
	rest func(elements []E, frame term.Term) term.Term,
) ([][]obligation, bool) {
	var alternatives [][]obligation
	used := make([]bool, len(right.elements))

	finish := func(obs []obligation, leftoverL []E) {
		var leftoverR []E
		for j, b := range right.elements {
			if !used[j] {
				leftoverR = append(leftoverR, b)
			}
		}
		obs = slices.Clone(obs)
		lf, rf := left.frame, right.frame
		switch {
		case len(leftoverL) == 0 && len(leftoverR) == 0:
			switch {
			case lf == nil && rf == nil:
			case lf == nil:
				obs = append(obs, obligation{lhs: rf, rhs: rest(nil, nil), residual: true})
			case rf == nil:
				obs = append(obs, obligation{lhs: lf, rhs: rest(nil, nil), residual: true})
			default:
				obs = append(obs, obligation{lhs: lf, rhs: rf, residual: true})
			}
		case len(leftoverR) == 0:
			obs = append(obs, obligation{lhs: rf, rhs: rest(leftoverL, lf), residual: true})
		case len(leftoverL) == 0:
			if lf == nil {
				return
			}
			obs = append(obs, obligation{lhs: lf, rhs: rest(leftoverR, rf), residual: true})
		default:
			if lf == nil || rf == nil {
				return
			}
			// both sides keep unknown parts
			obs = append(obs, obligation{lhs: rest(leftoverL, lf), rhs: rest(leftoverR, rf), residual: true})
		}
		alternatives = append(alternatives, obs)
	}

	var match func(i int, obs []obligation, leftoverL []E)
	match = func(i int, obs []obligation, leftoverL []E) {
		if i == len(left.elements) {
			finish(obs, leftoverL)
			return
		}
		a := left.elements[i]
		for j, b := range right.elements {
			if !used[j] && canPair(a, b) == forced {
				used[j] = true
				match(i+1, append(slices.Clone(obs), pair(a, b)...), leftoverL)
				used[j] = false
				return
			}
		}
		for j, b := range right.elements {
			if !used[j] && canPair(a, b) == possible {
				used[j] = true
				match(i+1, append(slices.Clone(obs), pair(a, b)...), leftoverL)
				used[j] = false
			}
		}
		if right.frame != nil {
			match(i+1, obs, append(slices.Clone(leftoverL), a))
		}
	}
	match(0, nil, nil)
	return alternatives, len(alternatives) > 0
}

func decided(t term.Term) bool {
	return t.IsGround() && !t.HasFunction()
}

func (ctx *Context) keyPairing(a, b term.Term) pairing {
	switch {
	case decided(a) && decided(b):
		if term.Equal(a, b) {
			return forced
		}
		return impossible
	case ctx.Truth(Equality{LHS: a, RHS: b}) == False:
		return impossible
	}
	return possible
}

func (ctx *Context) matchMaps(l, r *term.BuiltinMap) ([][]obligation, bool) {
	return acMatch(
		acSide[term.MapEntry]{l.Entries(), l.Frame()},
		acSide[term.MapEntry]{r.Entries(), r.Frame()},
		func(a, b term.MapEntry) pairing { return ctx.keyPairing(a.Key, b.Key) },
		func(a, b term.MapEntry) []obligation {
			return []obligation{{lhs: a.Key, rhs: b.Key}, {lhs: a.Value, rhs: b.Value}}
		},
		func(entries []term.MapEntry, frame term.Term) term.Term { return ctx.Registry.Map(entries, frame) },
	)
}

func (ctx *Context) matchSets(l, r *term.BuiltinSet) ([][]obligation, bool) {
	return acMatch(
		acSide[term.Term]{l.Elements(), l.Frame()},
		acSide[term.Term]{r.Elements(), r.Frame()},
		ctx.keyPairing,
		func(a, b term.Term) []obligation { return []obligation{{lhs: a, rhs: b}} },
		func(elements []term.Term, frame term.Term) term.Term { return ctx.Registry.Set(elements, frame) },
	)
}

func (ctx *Context) matchBags(l, r *term.CellCollection) ([][]obligation, bool) {
	frame := func(c *term.CellCollection) term.Term {
		switch len(c.Frames()) {
		case 0:
			return nil
		case 1:
			return c.Frames()[0]
		}
		kerr.Invariant("matching cell collection %s with frames %v", c, c.Frames())
		return nil
	}
	reg := ctx.Registry
	return acMatch(
		acSide[*term.Cell]{l.Cells(), frame(l)},
		acSide[*term.Cell]{r.Cells(), frame(r)},
		func(a, b *term.Cell) pairing {
			switch {
			case a.Label() != b.Label():
				return impossible
			case reg.Multiplicity(a.Label()) != term.Star:
				return forced
			}
			return possible
		},
		func(a, b *term.Cell) []obligation { return []obligation{{lhs: a.Content(), rhs: b.Content()}} },
		func(cells []*term.Cell, frame term.Term) term.Term {
			parts := make([]term.Term, 0, len(cells)+1)
			for _, c := range cells {
				parts = append(parts, c)
			}
			if frame != nil {
				parts = append(parts, frame)
			}
			return reg.Bag(parts...)
		},
	)
}
