package smt

import (
	"fmt"

	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/term"
)

// Guarded shields callers from a failing Solver: errors and panics become
// Unknown, so a crashed procedure is never mistaken for a proof.
type Guarded struct {
	solver  Solver
	metrics *metrics.Metrics
}

var _ Solver = (*Guarded)(nil)

// Guard wraps s. A nil m records nothing.
func Guard(s Solver, m *metrics.Metrics) *Guarded {
	if m == nil {
		m = metrics.Discard()
	}
	return &Guarded{solver: s, metrics: m}
}

func (g *Guarded) CheckSat(eqs []Equation, free []term.Variable) (Result, error) {
	return g.guard("check sat", func() (Result, error) { return g.solver.CheckSat(eqs, free) })
}

func (g *Guarded) CheckImplication(premise, conclusion []Equation, existential []term.Variable) (Result, error) {
	return g.guard("check implication", func() (Result, error) {
		return g.solver.CheckImplication(premise, conclusion, existential)
	})
}

func (g *Guarded) guard(op string, call func() (Result, error)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("decision procedure panicked, assuming unknown", "op", op, "panic", fmt.Sprint(r))
			g.metrics.SolverResults.WithLabelValues("error").Inc()
			res, err = Unknown, nil
		}
	}()
	res, err = call()
	if err != nil {
		logger.Warn("decision procedure failed, assuming unknown", "op", op, "err", err)
		g.metrics.SolverResults.WithLabelValues("error").Inc()
		return Unknown, nil
	}
	g.metrics.SolverResults.WithLabelValues(res.String()).Inc()
	return res, nil
}
