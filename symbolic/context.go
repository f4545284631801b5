// Package symbolic implements constraints over terms and the unification of
// constrained terms.
package symbolic

import (
	"slices"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/ksym/builtins"
	"github.com/cottand/ksym/internal/log"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/smt"
	"github.com/cottand/ksym/term"
)

var logger = log.Section("symbolic")

// Evaluator evaluates the function calls of a term as far as possible
type Evaluator interface {
	Evaluate(ctx *Context, t term.Term) term.Term
}

// Context is shared by the constraints of one rewrite branch. A nil Solver
// never proves anything and a nil Evaluator only runs builtin hooks.
type Context struct {
	Registry    *term.Registry
	Solver      smt.Solver
	Evaluator   Evaluator
	CompileOnly bool
	Guard       Guard
	Metrics     *metrics.Metrics
}

func NewContext(reg *term.Registry) *Context {
	return &Context{Registry: reg, Metrics: metrics.Discard()}
}

// WithGuard returns a copy of ctx evaluating under g
func (ctx *Context) WithGuard(g Guard) *Context {
	c := *ctx
	c.Guard = g
	return &c
}

func (ctx *Context) evaluate(t term.Term) term.Term {
	if !t.HasFunction() {
		return t
	}
	if ctx.Evaluator != nil {
		return ctx.Evaluator.Evaluate(ctx, t)
	}
	return EvaluateBuiltins(ctx.Registry, t)
}

// EvaluateBuiltins runs the builtin hooks of t bottom-up
func EvaluateBuiltins(r *term.Registry, t term.Term) term.Term {
	if !t.HasFunction() {
		return t
	}
	return r.Transform(t, func(t term.Term) term.Term {
		app, ok := t.(*term.KApply)
		if !ok || !app.IsFunctionCall() {
			return t
		}
		if res, ok := builtins.Evaluate(r, app); ok {
			return res
		}
		return t
	})
}

var guardHasher = immutable.NewHasher(uint64(0))

// Guard is the set of function calls already being evaluated on the current
// path. Calls are bucketed by hash and told apart with term.Equal. Adding
// returns a new Guard and leaves the receiver as is, so branches never see
// each other's entries.
type Guard struct {
	tried *immutable.Map[uint64, []term.Term]
	size  int
}

func (g Guard) With(call term.Term) Guard {
	if g.Contains(call) {
		return g
	}
	tried := g.tried
	if tried == nil {
		tried = immutable.NewMap[uint64, []term.Term](guardHasher)
	}
	bucket, _ := tried.Get(call.Hash())
	bucket = append(slices.Clip(bucket), call)
	return Guard{tried: tried.Set(call.Hash(), bucket), size: g.size + 1}
}

func (g Guard) Contains(call term.Term) bool {
	if g.tried == nil {
		return false
	}
	bucket, _ := g.tried.Get(call.Hash())
	return slices.ContainsFunc(bucket, func(t term.Term) bool { return term.Equal(t, call) })
}

func (g Guard) Len() int { return g.size }
