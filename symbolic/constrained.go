package symbolic

import (
	"github.com/cottand/ksym/term"
	"github.com/hashicorp/go-set/v3"
)

// ConstrainedTerm is a term together with the constraint its variables
// satisfy. A rule pattern also carries its lookups, which are solved once the
// pattern is matched.
type ConstrainedTerm struct {
	term       term.Term
	constraint *Constraint
	lookups    *Constraint
}

// NewConstrainedTerm pairs t with c. A nil c stands for true.
func NewConstrainedTerm(ctx *Context, t term.Term, c *Constraint) *ConstrainedTerm {
	if c == nil {
		c = New(ctx)
	}
	return &ConstrainedTerm{term: t, constraint: c}
}

// WithLookups returns a copy of ct carrying lookups
func (ct *ConstrainedTerm) WithLookups(lookups *Constraint) *ConstrainedTerm {
	cp := *ct
	cp.lookups = lookups
	return &cp
}

func (ct *ConstrainedTerm) Term() term.Term         { return ct.term }
func (ct *ConstrainedTerm) Constraint() *Constraint { return ct.constraint }
func (ct *ConstrainedTerm) Context() *Context       { return ct.constraint.ctx }
func (ct *ConstrainedTerm) String() string          { return ct.term.String() + " /\\ " + ct.constraint.String() }

// Variables are the variables of the term, its constraint and its lookups
func (ct *ConstrainedTerm) Variables() *set.Set[term.Variable] {
	vars := term.Variables(ct.term)
	vars.InsertSet(ct.constraint.Variables())
	if ct.lookups != nil {
		vars.InsertSet(ct.lookups.Variables())
	}
	return vars
}

// Unify returns the constraints under which ct and other denote the same
// term, one per way of matching them. Each solution includes the lookups and
// constraints of both sides. Outside compile-only mode solutions the decision
// procedure finds unsatisfiable are dropped.
func (ct *ConstrainedTerm) Unify(other *ConstrainedTerm) []*Constraint {
	ctx := ct.Context()
	var solutions []*Constraint
	for _, candidate := range ctx.Unify(ct.term, other.term) {
		candidate.AddAll(other.constraint)
		if other.lookups != nil {
			candidate.AddAll(other.lookups)
		}
		candidate.AddAll(ct.constraint)
		candidate.Simplify()
		if candidate.IsFalse() {
			continue
		}
		if !ctx.CompileOnly && candidate.CheckUnsat() {
			logger.Debug("dropping unsatisfiable unifier", "constraint", candidate.String())
			continue
		}
		solutions = append(solutions, candidate)
	}
	outcome := "failed"
	if len(solutions) > 0 {
		outcome = "solved"
	}
	ctx.Metrics.Unifications.WithLabelValues(outcome).Inc()
	return solutions
}

// MatchImplies matches pattern against ct and checks that the constraint of
// ct entails the side conditions of pattern. The variables of the pattern
// are bound by the match and need no proof. It returns the matching
// constraint, or nil when there is none.
func (ct *ConstrainedTerm) MatchImplies(pattern *ConstrainedTerm) *Constraint {
	ctx := ct.Context()
	own := ct.Variables()
	fresh := pattern.Variables().Difference(own)
	existential := set.From(fresh.Slice())
	for _, candidate := range ctx.Unify(ct.term, pattern.term) {
		if pattern.lookups != nil {
			candidate.AddAll(pattern.lookups)
		}
		candidate.Simplify()
		if candidate.IsFalse() {
			continue
		}
		candidate.OrientSubstitution(existential)
		conclusion := candidate.Copy().AddAll(pattern.constraint)
		if ct.constraint.Implies(conclusion, existential) {
			return candidate
		}
	}
	return nil
}
