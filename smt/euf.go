package smt

import (
	"github.com/cottand/ksym/term"
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// DefaultMaxTerms bounds the number of distinct subterms an EUFSolver encodes.
// Transitivity is encoded eagerly, so the formula grows with the cube of it.
const DefaultMaxTerms = 40

var errTooLarge = errors.New("formula exceeds the term limit")

// EUFSolver decides conjunctions of equalities over uninterpreted functions.
// Constructors are injective and pairwise disjoint, distinct ground terms
// without function calls are different, and Bool terms are true or false.
// Every equality between two subterms becomes a propositional variable; the
// theory axioms are encoded as clauses and solved with gini.
type EUFSolver struct {
	Registry *term.Registry
	MaxTerms int
}

func NewEUFSolver(reg *term.Registry) *EUFSolver {
	return &EUFSolver{Registry: reg, MaxTerms: DefaultMaxTerms}
}

var _ Solver = (*EUFSolver)(nil)

func (s *EUFSolver) CheckSat(eqs []Equation, free []term.Variable) (Result, error) {
	enc := s.encoder()
	lits, err := enc.equations(eqs)
	if errors.Is(err, errTooLarge) {
		logger.Debug("giving up on large formula", "equations", len(eqs))
		return Unknown, nil
	}
	if err != nil {
		return Unknown, err
	}
	res := enc.solve(enc.c.Ands(lits...))
	logger.Debug("check sat", "formula", conjunction(eqs), "free", len(free), "result", res)
	return res, nil
}

func (s *EUFSolver) CheckImplication(premise, conclusion []Equation, existential []term.Variable) (Result, error) {
	for _, eq := range conclusion {
		for _, v := range existential {
			if occurs(v, eq.LHS) || occurs(v, eq.RHS) {
				// quantifier alternation is beyond this procedure
				return Unknown, nil
			}
		}
	}
	enc := s.encoder()
	pre, err := enc.equations(premise)
	if err == nil {
		var con []z.Lit
		if con, err = enc.equations(conclusion); err == nil {
			res := enc.solve(enc.c.And(enc.c.Ands(pre...), enc.c.Ands(con...).Not()))
			logger.Debug("check implication", "premise", conjunction(premise), "conclusion", conjunction(conclusion), "result", res)
			return res, nil
		}
	}
	if errors.Is(err, errTooLarge) {
		return Unknown, nil
	}
	return Unknown, err
}

func occurs(v term.Variable, t term.Term) bool {
	return term.Variables(t).Contains(v)
}

type encoder struct {
	reg      *term.Registry
	c        *logic.C
	nodes    []term.Term
	byHash   map[uint64][]int
	eqs      map[[2]int]z.Lit
	maxTerms int
}

func (s *EUFSolver) encoder() *encoder {
	limit := s.MaxTerms
	if limit <= 0 {
		limit = DefaultMaxTerms
	}
	return &encoder{
		reg:      s.Registry,
		c:        logic.NewC(),
		byHash:   make(map[uint64][]int),
		eqs:      make(map[[2]int]z.Lit),
		maxTerms: limit,
	}
}

// node interns t and its subterms, returning the id of t
func (e *encoder) node(t term.Term) (int, error) {
	for _, id := range e.byHash[t.Hash()] {
		if term.Equal(e.nodes[id], t) {
			return id, nil
		}
	}
	switch t := t.(type) {
	case *term.KApply:
		for _, arg := range t.Args() {
			if _, err := e.node(arg); err != nil {
				return 0, err
			}
		}
	case *term.Cell:
		if _, err := e.node(t.Content()); err != nil {
			return 0, err
		}
	}
	if len(e.nodes) >= e.maxTerms {
		return 0, errTooLarge
	}
	id := len(e.nodes)
	e.nodes = append(e.nodes, t)
	e.byHash[t.Hash()] = append(e.byHash[t.Hash()], id)
	return id, nil
}

func (e *encoder) equations(eqs []Equation) ([]z.Lit, error) {
	type pair struct{ l, r int }
	pairs := make([]pair, 0, len(eqs))
	bottom := false
	for _, eq := range eqs {
		if term.IsBottom(eq.LHS) || term.IsBottom(eq.RHS) {
			bottom = true
			continue
		}
		l, err := e.node(eq.LHS)
		if err != nil {
			return nil, err
		}
		r, err := e.node(eq.RHS)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{l, r})
	}
	lits := make([]z.Lit, 0, len(pairs)+1)
	if bottom {
		lits = append(lits, e.c.F)
	}
	for _, p := range pairs {
		lits = append(lits, e.eq(p.l, p.r))
	}
	return lits, nil
}

// eq is the literal of nodes i and j being equal
func (e *encoder) eq(i, j int) z.Lit {
	if i == j {
		return e.c.T
	}
	if i > j {
		i, j = j, i
	}
	key := [2]int{i, j}
	if m, ok := e.eqs[key]; ok {
		return m
	}
	m := e.c.Lit()
	e.eqs[key] = m
	return m
}

// booleans adds the Bool constants when some term of sort Bool is not one
func (e *encoder) booleans() ([]int, error) {
	var open []int
	for id, t := range e.nodes {
		if t.Sort() == e.reg.Sorts.Bool && !isValue(t) {
			open = append(open, id)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	if _, err := e.node(e.reg.Bool(true)); err != nil {
		return nil, err
	}
	if _, err := e.node(e.reg.Bool(false)); err != nil {
		return nil, err
	}
	return open, nil
}

func isValue(t term.Term) bool {
	_, ok := t.(*term.Token)
	return ok
}

func isConstructor(t term.Term) (*term.KApply, bool) {
	app, ok := t.(*term.KApply)
	return app, ok && !app.IsFunctionCall()
}

// axioms returns the theory of the interned nodes as a single literal
func (e *encoder) axioms() z.Lit {
	c := e.c
	var facts []z.Lit
	open, err := e.booleans()
	if err == nil {
		tt, ff := e.nodeOf(e.reg.Bool(true)), e.nodeOf(e.reg.Bool(false))
		for _, id := range open {
			facts = append(facts, c.Or(e.eq(id, tt), e.eq(id, ff)))
		}
	}
	n := len(e.nodes)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			facts = append(facts, e.relate(i, j))
			for k := j + 1; k < n; k++ {
				ij, jk, ik := e.eq(i, j), e.eq(j, k), e.eq(i, k)
				facts = append(facts,
					c.Implies(c.And(ij, jk), ik),
					c.Implies(c.And(ij, ik), jk),
					c.Implies(c.And(ik, jk), ij),
				)
			}
		}
	}
	return c.Ands(facts...)
}

func (e *encoder) nodeOf(t term.Term) int {
	for _, id := range e.byHash[t.Hash()] {
		if term.Equal(e.nodes[id], t) {
			return id
		}
	}
	return -1
}

// relate constrains the equality of two distinct nodes
func (e *encoder) relate(i, j int) z.Lit {
	c := e.c
	a, b := e.nodes[i], e.nodes[j]
	eq := e.eq(i, j)

	if a.IsGround() && b.IsGround() && !a.HasFunction() && !b.HasFunction() {
		// interned nodes are structurally different
		return eq.Not()
	}
	if !e.sortsMayMeet(a, b) {
		return eq.Not()
	}

	ca, aCons := isConstructor(a)
	cb, bCons := isConstructor(b)
	_, aTok := a.(*term.Token)
	_, bTok := b.(*term.Token)
	switch {
	case aCons && bCons:
		if ca.Label() != cb.Label() || len(ca.Args()) != len(cb.Args()) {
			return eq.Not()
		}
		return c.Ands(c.Implies(eq, e.args(ca, cb)), c.Implies(e.args(ca, cb), eq))
	case aCons && bTok, aTok && bCons:
		return eq.Not()
	}

	fa, aApp := a.(*term.KApply)
	fb, bApp := b.(*term.KApply)
	if aApp && bApp && fa.Label() == fb.Label() && len(fa.Args()) == len(fb.Args()) {
		// congruence
		return c.Implies(e.args(fa, fb), eq)
	}

	cellA, aCell := a.(*term.Cell)
	cellB, bCell := b.(*term.Cell)
	if aCell && bCell {
		if cellA.Label() != cellB.Label() {
			return eq.Not()
		}
		content := e.eq(e.nodeOf(cellA.Content()), e.nodeOf(cellB.Content()))
		return c.And(c.Implies(eq, content), c.Implies(content, eq))
	}
	return c.T
}

func (e *encoder) args(a, b *term.KApply) z.Lit {
	lits := make([]z.Lit, len(a.Args()))
	for k := range a.Args() {
		lits[k] = e.eq(e.nodeOf(a.Args()[k]), e.nodeOf(b.Args()[k]))
	}
	return e.c.Ands(lits...)
}

// sortsMayMeet is false when a term of exact sort can never be an instance of the other
func (e *encoder) sortsMayMeet(a, b term.Term) bool {
	if !a.Kind().CompatibleWith(b.Kind()) {
		return false
	}
	switch {
	case a.IsExactSort() && b.IsExactSort():
		return a.Sort() == b.Sort()
	case a.IsExactSort():
		return e.reg.IsSubsortedEq(b.Sort(), a.Sort())
	case b.IsExactSort():
		return e.reg.IsSubsortedEq(a.Sort(), b.Sort())
	}
	return true
}

func (e *encoder) solve(formula z.Lit) Result {
	axioms := e.axioms()
	g := gini.New()
	e.c.ToCnf(g)
	g.Assume(axioms, formula)
	switch g.Solve() {
	case 1:
		return Sat
	case -1:
		return Unsat
	}
	return Unknown
}
