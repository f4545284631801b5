package symbolic

import (
	"github.com/cottand/ksym/smt"
	"github.com/cottand/ksym/term"
	"github.com/hashicorp/go-set/v3"
)

// Implies reports whether every solution of c is a solution of other, where
// the variables in existential may be chosen freely for each solution. An
// if-then-else left in other is split on its condition; the remaining cases
// go to the decision procedure. False means not proven.
func (c *Constraint) Implies(other *Constraint, existential *set.Set[term.Variable]) bool {
	if existential == nil {
		existential = set.New[term.Variable](0)
	}
	if c.IsFalse() {
		return true
	}
	if other.IsFalse() {
		return c.CheckUnsat()
	}
	conclusion := New(c.ctx)
	conclusion.startBatch()
	for v, t := range other.Substitution() {
		conclusion.Add(c.apply(v), c.apply(t))
	}
	for _, eq := range other.Equalities() {
		conclusion.Add(c.apply(eq.LHS), c.apply(eq.RHS))
	}
	conclusion.endBatch()
	return c.implies(conclusion, existential)
}

func (c *Constraint) implies(conclusion *Constraint, existential *set.Set[term.Variable]) bool {
	conclusion.Simplify()
	if conclusion.IsFalse() {
		return c.CheckUnsat()
	}
	remaining := conclusion.OrientSubstitution(existential).residual(existential)
	if len(remaining) == 0 {
		return true
	}

	for _, eq := range remaining {
		ite, ok := innermostIte(eq).(*term.KApply)
		if !ok {
			continue
		}
		cond, then, els := ite.Args()[0], ite.Args()[1], ite.Args()[2]
		reg := c.ctx.Registry
		for _, branch := range []struct {
			holds bool
			pick  term.Term
		}{{true, then}, {false, els}} {
			premise := c.Copy().Add(cond, reg.Bool(branch.holds))
			if premise.IsFalse() {
				continue
			}
			next := New(c.ctx)
			next.startBatch()
			for _, eq := range remaining {
				next.Add(premise.apply(reg.Replace(eq.LHS, ite, branch.pick)), premise.apply(reg.Replace(eq.RHS, ite, branch.pick)))
			}
			next.endBatch()
			logger.Debug("case split", "condition", cond, "holds", branch.holds)
			if !premise.implies(next, existential) {
				return false
			}
		}
		return true
	}

	if c.ctx.Solver == nil {
		return false
	}
	premise := make([]smt.Equation, 0, len(c.equalities))
	for _, eq := range c.Equalities() {
		premise = append(premise, eq.equation())
	}
	goal := make([]smt.Equation, len(remaining))
	quantified := set.New[term.Variable](0)
	for i, eq := range remaining {
		goal[i] = eq.equation()
		term.CollectVariables(eq.LHS, quantified)
		term.CollectVariables(eq.RHS, quantified)
	}
	res, err := c.ctx.Solver.CheckImplication(premise, goal, quantified.Intersect(existential).Slice())
	if err != nil {
		logger.Warn("implication check failed", "premise", c.String(), "err", err)
		return false
	}
	return res == smt.Unsat
}

// residual is what remains to be proven of c: its equalities and the
// bindings of variables that are not existential. A bound existential
// variable is witnessed by its binding.
func (c *Constraint) residual(existential *set.Set[term.Variable]) []Equality {
	eqs := c.Equalities()
	for v, t := range c.Substitution() {
		if !existential.Contains(v) {
			eqs = append(eqs, Equality{LHS: v, RHS: t})
		}
	}
	return eqs
}

func innermostIte(eq Equality) term.Term {
	if found := term.FindInnermost(eq.LHS, term.IsIfThenElse); found != nil {
		return found
	}
	return term.FindInnermost(eq.RHS, term.IsIfThenElse)
}
