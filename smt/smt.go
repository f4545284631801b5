// Package smt is the decision procedure consulted by the symbolic engine to
// discard unsatisfiable constraints and to prove implications.
package smt

import (
	"strings"

	"github.com/cottand/ksym/internal/log"
	"github.com/cottand/ksym/term"
)

var logger = log.Section("smt")

type Result uint8

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Equation is LHS = RHS
type Equation struct {
	LHS, RHS term.Term
}

func (e Equation) String() string {
	return e.LHS.String() + " = " + e.RHS.String()
}

func conjunction(eqs []Equation) string {
	parts := make([]string, len(eqs))
	for i, eq := range eqs {
		parts[i] = eq.String()
	}
	return strings.Join(parts, " /\\ ")
}

type Solver interface {
	// CheckSat decides whether the conjunction of eqs has a model. Variables
	// in free may take any value; every other variable is treated the same way.
	CheckSat(eqs []Equation, free []term.Variable) (Result, error)

	// CheckImplication decides premise /\ not(conclusion). Unsat means the
	// implication holds. Variables in existential occur only in the conclusion.
	CheckImplication(premise, conclusion []Equation, existential []term.Variable) (Result, error)
}
