package symbolic

import (
	"github.com/cottand/ksym/smt"
	"github.com/cottand/ksym/term"
)

type TruthValue uint8

const (
	Unknown TruthValue = iota
	True
	False
)

func (v TruthValue) String() string {
	switch v {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Equality is LHS = RHS. Both sides have compatible kinds.
type Equality struct {
	LHS, RHS term.Term
}

func (e Equality) String() string {
	return e.LHS.String() + " = " + e.RHS.String()
}

func (e Equality) equation() smt.Equation {
	return smt.Equation{LHS: e.LHS, RHS: e.RHS}
}

// Truth decides e without unification: syntactically equal sides hold,
// and sides that cannot denote the same value by their shape, size or sort
// do not.
func (ctx *Context) Truth(e Equality) TruthValue {
	a, b := e.LHS, e.RHS
	switch {
	case term.IsBottom(a) || term.IsBottom(b):
		return False
	case term.Equal(a, b):
		return True
	case a.IsGround() && b.IsGround() && !a.HasFunction() && !b.HasFunction():
		return False
	case !ctx.sortsAgree(a, b):
		return False
	case headsClash(a, b):
		return False
	case sizesClash(a, b):
		return False
	}
	return Unknown
}

func (ctx *Context) sortsAgree(a, b term.Term) bool {
	r := ctx.Registry
	switch {
	case a.IsExactSort() && b.IsExactSort():
		return a.Sort() == b.Sort()
	case a.IsExactSort():
		return r.IsSubsortedEq(b.Sort(), a.Sort())
	case b.IsExactSort():
		return r.IsSubsortedEq(a.Sort(), b.Sort())
	}
	return r.Compatible(a.Sort(), b.Sort())
}

// headsClash is true for two constructor-headed terms that can never be equal
func headsClash(a, b term.Term) bool {
	switch a := a.(type) {
	case *term.KApply:
		if a.IsFunctionCall() {
			return false
		}
		switch b := b.(type) {
		case *term.KApply:
			return !b.IsFunctionCall() && (a.Label() != b.Label() || len(a.Args()) != len(b.Args()))
		case *term.Token, *term.Hole:
			return true
		}
	case *term.Token:
		switch b := b.(type) {
		case *term.KApply:
			return !b.IsFunctionCall()
		case *term.Token:
			return a.Value() != b.Value() || a.Sort() != b.Sort()
		}
	case *term.Cell:
		if b, ok := b.(*term.Cell); ok {
			return a.Label() != b.Label()
		}
	}
	return false
}

// sizesClash compares the lengths of sequences and lists: a side without a
// frame has exactly its items, a side with one has at least its items
func sizesClash(a, b term.Term) bool {
	if a.HasFunction() || b.HasFunction() {
		return false
	}
	la, exactA, okA := length(a)
	lb, exactB, okB := length(b)
	if !okA || !okB {
		return false
	}
	switch {
	case exactA && exactB:
		return la != lb
	case exactA:
		return la < lb
	case exactB:
		return lb < la
	}
	return false
}

func length(t term.Term) (n int, exact bool, ok bool) {
	switch t := t.(type) {
	case *term.KSequence:
		return len(t.Items()), t.Frame() == nil, true
	case *term.BuiltinList:
		return len(t.Elements()), t.Frame() == nil, true
	case *term.CellCollection:
		return len(t.Cells()), t.IsConcrete(), true
	}
	return 0, false, false
}
