package symbolic

import (
	"maps"
	"slices"
	"strings"

	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/smt"
	"github.com/cottand/ksym/term"
	"github.com/cottand/ksym/util"
	"github.com/hashicorp/go-set/v3"
)

// Constraint is a conjunction of equalities, kept as a substitution plus the
// equalities that could not be solved for a variable. It starts true, and once
// false it stays false. A Constraint belongs to one rewrite branch; use Copy
// before handing it to another.
type Constraint struct {
	ctx          *Context
	equalities   []Equality
	substitution term.Substitution
	falsified    *Equality

	// normal is false while equalities may mention bound variables
	normal      bool
	normalizing bool
	batch       bool
}

var _ util.Copyable[*Constraint] = (*Constraint)(nil)

func New(ctx *Context) *Constraint {
	return &Constraint{ctx: ctx, substitution: make(term.Substitution), normal: true}
}

func (c *Constraint) Context() *Context { return c.ctx }

func (c *Constraint) Copy() *Constraint {
	cp := *c
	cp.equalities = slices.Clone(c.equalities)
	cp.substitution = maps.Clone(c.substitution)
	cp.normalizing, cp.batch = false, false
	return &cp
}

// Add conjoins lhs = rhs. The kinds of lhs and rhs must be compatible.
func (c *Constraint) Add(lhs, rhs term.Term) *Constraint {
	if !lhs.Kind().CompatibleWith(rhs.Kind()) {
		kerr.Invariant("equality between %s of kind %s and %s of kind %s", lhs, lhs.Kind(), rhs, rhs.Kind())
	}
	if c.IsFalseNoNormalize() {
		return c
	}
	if !c.batch {
		c.normalize()
	}
	c.addEquality(lhs, rhs)
	return c
}

// AddAll conjoins every equality and binding of other
func (c *Constraint) AddAll(other *Constraint) *Constraint {
	if other.falsified != nil {
		c.falsify(*other.falsified)
		return c
	}
	c.startBatch()
	for v, t := range other.substitution {
		c.Add(v, t)
	}
	for _, eq := range other.equalities {
		c.Add(eq.LHS, eq.RHS)
	}
	c.endBatch()
	return c
}

func (c *Constraint) startBatch() {
	c.normalize()
	c.batch = true
}

func (c *Constraint) endBatch() {
	c.batch = false
	c.normalize()
}

// IsFalseNoNormalize reports falsity found so far without normalizing
func (c *Constraint) IsFalseNoNormalize() bool { return c.falsified != nil }

func (c *Constraint) IsFalse() bool {
	c.normalize()
	return c.falsified != nil
}

func (c *Constraint) IsTrue() bool {
	c.normalize()
	return c.falsified == nil && len(c.equalities) == 0 && len(c.substitution) == 0
}

// IsSubstitution is true when every equality has been solved for a variable
func (c *Constraint) IsSubstitution() bool {
	c.normalize()
	return c.falsified == nil && len(c.equalities) == 0
}

func (c *Constraint) Truth() TruthValue {
	switch {
	case c.IsFalse():
		return False
	case c.IsTrue():
		return True
	}
	return Unknown
}

// FalsifyingEquality is the equality that made c false
func (c *Constraint) FalsifyingEquality() (Equality, bool) {
	if c.falsified == nil {
		return Equality{}, false
	}
	return *c.falsified, true
}

// Equalities are the unsolved equalities. No variable bound by Substitution occurs in them.
func (c *Constraint) Equalities() []Equality {
	c.normalize()
	return slices.Clone(c.equalities)
}

func (c *Constraint) Substitution() term.Substitution {
	c.normalize()
	return maps.Clone(c.substitution)
}

// Substitute applies the substitution of c to t and evaluates the result
func (c *Constraint) Substitute(t term.Term) term.Term {
	c.normalize()
	return c.ctx.evaluate(c.apply(t))
}

func (c *Constraint) apply(t term.Term) term.Term {
	return c.ctx.Registry.Substitute(t, c.substitution)
}

// Project drops the bindings of the variables in drop
func (c *Constraint) Project(drop *set.Set[term.Variable]) *Constraint {
	cp := c.Copy()
	cp.normalize()
	for v := range drop.Items() {
		delete(cp.substitution, v)
	}
	return cp
}

// Variables are the variables c constrains, bound or not
func (c *Constraint) Variables() *set.Set[term.Variable] {
	c.normalize()
	vars := set.New[term.Variable](len(c.substitution))
	for v, t := range c.substitution {
		vars.Insert(v)
		term.CollectVariables(t, vars)
	}
	for _, eq := range c.equalities {
		term.CollectVariables(eq.LHS, vars)
		term.CollectVariables(eq.RHS, vars)
	}
	return vars
}

func (c *Constraint) String() string {
	c.normalize()
	if c.falsified != nil {
		return "false"
	}
	if len(c.equalities) == 0 && len(c.substitution) == 0 {
		return "true"
	}
	var parts []string
	for v, t := range c.substitution {
		parts = append(parts, v.String()+" = "+t.String())
	}
	slices.Sort(parts)
	for _, eq := range c.equalities {
		parts = append(parts, eq.String())
	}
	return strings.Join(parts, " /\\ ")
}

func (c *Constraint) falsify(eq Equality) {
	c.falsified = &eq
	c.equalities = nil
	c.substitution = make(term.Substitution)
	c.normal = true
}

// normalize substitutes the bindings into the pending equalities until no
// equality can be solved for a variable any more
func (c *Constraint) normalize() {
	if c.normal || c.falsified != nil {
		return
	}
	if c.normalizing {
		kerr.Invariant("constraint normalization re-entered")
	}
	c.normalizing = true
	defer func() { c.normalizing = false }()

	for c.falsified == nil {
		bound := len(c.substitution)
		pending := c.equalities
		c.equalities = nil
		for _, eq := range pending {
			c.addEquality(eq.LHS, eq.RHS)
			if c.falsified != nil {
				break
			}
		}
		if len(c.substitution) == bound {
			break
		}
	}
	c.normal = true
}

func (c *Constraint) addEquality(lhs, rhs term.Term) {
	lhs = c.ctx.evaluate(c.apply(lhs))
	rhs = c.ctx.evaluate(c.apply(rhs))
	eq := Equality{LHS: lhs, RHS: rhs}
	switch c.ctx.Truth(eq) {
	case True:
		return
	case False:
		c.falsify(eq)
		return
	}
	if v, t, ok := c.orient(lhs, rhs); ok {
		c.bind(v, t)
		return
	}
	if cyclic(lhs, rhs) || cyclic(rhs, lhs) {
		c.falsify(eq)
		return
	}
	c.equalities = append(c.equalities, eq)
}

// orient picks the variable side of an equality that can become a binding.
// Between two variables the anonymous one is substituted away.
func (c *Constraint) orient(lhs, rhs term.Term) (term.Variable, term.Term, bool) {
	lv, lok := lhs.(term.Variable)
	rv, rok := rhs.(term.Variable)
	if lok && rok && rv.Anonymous() && !lv.Anonymous() {
		lv, rv = rv, lv
		lhs, rhs = rhs, lhs
	}
	if lok && c.canBind(lv, rhs) {
		return lv, rhs, true
	}
	if rok && c.canBind(rv, lhs) {
		return rv, lhs, true
	}
	return term.Variable{}, nil, false
}

func (c *Constraint) canBind(v term.Variable, t term.Term) bool {
	if !c.ctx.Registry.IsSubsortedEq(v.Sort(), t.Sort()) {
		return false
	}
	return t.IsGround() || !term.Variables(t).Contains(v)
}

func (c *Constraint) bind(v term.Variable, t term.Term) {
	single := term.Substitution{v: t}
	for k, bound := range c.substitution {
		c.substitution[k] = c.ctx.Registry.Substitute(bound, single)
	}
	c.substitution[v] = t
	if len(c.equalities) > 0 {
		c.normal = false
	}
}

// cyclic is true when t is a variable occurring in other under constructors
// only, which no finite term satisfies
func cyclic(t, other term.Term) bool {
	v, ok := t.(term.Variable)
	if !ok || term.Equal(t, other) {
		return false
	}
	var under func(term.Term) bool
	under = func(t term.Term) bool {
		switch t := t.(type) {
		case term.Variable:
			return t == v
		case *term.KApply:
			return !t.IsFunctionCall() && slices.ContainsFunc(t.Args(), under)
		case *term.Cell:
			return under(t.Content())
		case *term.KSequence:
			items, frame := term.AsSequence(t)
			return slices.ContainsFunc(items, under) || (frame != nil && under(frame))
		}
		return false
	}
	return under(other)
}

// Simplify decomposes the pending equalities whose sides are both built
// from constructors, until none is left or c is false
func (c *Constraint) Simplify() *Constraint {
	c.normalize()
	for c.falsified == nil {
		progress := false
		var keep []Equality
		var derived []*Constraint
		for _, eq := range c.equalities {
			if !decomposable(eq.LHS) || !decomposable(eq.RHS) {
				keep = append(keep, eq)
				continue
			}
			candidates := c.ctx.Unify(eq.LHS, eq.RHS)
			switch {
			case len(candidates) == 0:
				c.falsify(eq)
				return c
			case len(candidates) == 1 && !candidates[0].pending(eq):
				derived = append(derived, candidates[0])
				progress = true
			default:
				keep = append(keep, eq)
			}
		}
		if !progress {
			break
		}
		c.equalities = keep
		for _, d := range derived {
			c.AddAll(d)
		}
	}
	return c
}

// pending is true when eq is still among the unsolved equalities of c
func (c *Constraint) pending(eq Equality) bool {
	return slices.ContainsFunc(c.equalities, func(other Equality) bool {
		return term.Equal(other.LHS, eq.LHS) && term.Equal(other.RHS, eq.RHS) ||
			term.Equal(other.LHS, eq.RHS) && term.Equal(other.RHS, eq.LHS)
	})
}

func decomposable(t term.Term) bool {
	switch t := t.(type) {
	case term.Variable:
		return false
	case *term.KApply:
		return !t.IsFunctionCall()
	case *term.KSequence:
		return len(t.Items()) > 0
	}
	return true
}

// OrientSubstitution re-roots the bindings so that the variables of vars are
// bound wherever a binding of another variable is just one of them
func (c *Constraint) OrientSubstitution(vars *set.Set[term.Variable]) *Constraint {
	c.normalize()
	if c.falsified != nil {
		return c
	}
	for changed := true; changed; {
		changed = false
		for _, key := range c.sortedKeys() {
			target, ok := c.substitution[key].(term.Variable)
			if !ok || vars.Contains(key) || !vars.Contains(target) {
				continue
			}
			if !c.ctx.Registry.IsSubsortedEq(target.Sort(), key.Sort()) {
				continue
			}
			delete(c.substitution, key)
			c.bind(target, key)
			changed = true
		}
	}
	for v, t := range c.substitution {
		for k := range c.substitution {
			if !t.IsGround() && term.Variables(t).Contains(k) {
				kerr.Invariant("orienting %v left %v bound and free in %v = %v", vars.Slice(), k, v, t)
			}
		}
	}
	return c
}

// sortedKeys makes orientation deterministic
func (c *Constraint) sortedKeys() []term.Variable {
	keys := slices.Collect(maps.Keys(c.substitution))
	slices.SortFunc(keys, func(a, b term.Variable) int { return strings.Compare(a.Name(), b.Name()) })
	return keys
}

// CheckUnsat asks the decision procedure whether c has no solution. A
// substitution always has one, and without a procedure nothing is unsat.
func (c *Constraint) CheckUnsat() bool {
	if c.IsFalse() {
		return true
	}
	if len(c.equalities) == 0 || c.ctx.Solver == nil {
		return false
	}
	eqs := make([]smt.Equation, len(c.equalities))
	for i, eq := range c.equalities {
		eqs[i] = eq.equation()
	}
	res, err := c.ctx.Solver.CheckSat(eqs, c.Variables().Slice())
	if err != nil {
		logger.Warn("unsat check failed", "constraint", c.String(), "err", err)
		return false
	}
	return res == smt.Unsat
}
