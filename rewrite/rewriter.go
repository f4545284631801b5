// Package rewrite drives the rewriting of configurations: it asks the index
// for candidate rules, unifies them with the configuration and builds the
// successors from their right-hand sides.
package rewrite

import (
	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/index"
	"github.com/cottand/ksym/internal/log"
	"github.com/cottand/ksym/internal/metrics"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/smt"
	"github.com/cottand/ksym/symbolic"
	"github.com/cottand/ksym/term"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var logger = log.Section("rewrite")

type Rewriter struct {
	def     *definition.Definition
	table   *index.Table
	config  Config
	solver  smt.Solver
	metrics *metrics.Metrics
	ctx     *symbolic.Context
}

type Option func(*Rewriter)

// WithSolver replaces the default EUF decision procedure
func WithSolver(s smt.Solver) Option {
	return func(rw *Rewriter) { rw.solver = s }
}

// WithTable uses an index built elsewhere, for example one restored from a cache
func WithTable(t *index.Table) Option {
	return func(rw *Rewriter) { rw.table = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(rw *Rewriter) { rw.metrics = m }
}

func New(def *definition.Definition, config Config, opts ...Option) (*Rewriter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	rw := &Rewriter{def: def, config: config, metrics: metrics.Discard()}
	for _, opt := range opts {
		opt(rw)
	}
	if rw.solver == nil {
		rw.solver = smt.NewEUFSolver(def.Registry)
	}
	if rw.table == nil {
		rw.table = index.NewTable(def, index.WithAudit(config.Audit), index.WithMetrics(rw.metrics))
	}

	ctx := symbolic.NewContext(def.Registry)
	ctx.Solver = smt.Guard(rw.solver, rw.metrics)
	ctx.Evaluator = newFunctions(def, config.DeterministicFunctions)
	ctx.CompileOnly = config.CompileOnly
	ctx.Metrics = rw.metrics
	rw.ctx = ctx
	return rw, nil
}

// Context is shared by every constrained term of rw
func (rw *Rewriter) Context() *symbolic.Context { return rw.ctx }

func (rw *Rewriter) Table() *index.Table { return rw.table }

// Initial is t without side conditions
func (rw *Rewriter) Initial(t term.Term) *symbolic.ConstrainedTerm {
	return symbolic.NewConstrainedTerm(rw.ctx, rw.ctx.Evaluator.Evaluate(rw.ctx, t), nil)
}

// Step rewrites ct once with the candidate rules of the index, in index
// order. It keeps one successor or all of them depending on the policy. No
// successor means no rule applies. An index audit failure is returned as
// an error.
func (rw *Rewriter) Step(ct *symbolic.ConstrainedTerm) ([]*symbolic.ConstrainedTerm, error) {
	return rw.step(ct, rw.config.Policy)
}

func (rw *Rewriter) step(ct *symbolic.ConstrainedTerm, policy Policy) ([]*symbolic.ConstrainedTerm, error) {
	rules, err := rw.table.Rules(ct.Term())
	if err != nil {
		return nil, err
	}
	var successors []*symbolic.ConstrainedTerm
	for _, rule := range rules {
		results := rw.apply(ct, rule)
		if len(results) == 0 {
			continue
		}
		if policy == FirstMatch {
			return results[:1], nil
		}
		successors = append(successors, results...)
	}
	return successors, nil
}

// apply rewrites ct with rule. A sort that cannot be computed for a
// result aborts the branch, and so does a result that is undefined.
func (rw *Rewriter) apply(ct *symbolic.ConstrainedTerm, rule *definition.Rule) (results []*symbolic.ConstrainedTerm) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var sortErr *kerr.SortComputationError
		if err, ok := r.(error); ok && errors.As(err, &sortErr) {
			logger.Error("aborting branch", "rule", rule.Name(), "err", kerr.FormatWithCode(sortErr))
			results = nil
			return
		}
		panic(r)
	}()

	reg := rw.def.Registry
	renamed := rule.Renamed(reg)
	for _, solution := range ct.Unify(pattern(rw.ctx, renamed, renamed.LHS)) {
		if renamed.Ensures != nil {
			solution.Add(renamed.Ensures, reg.Bool(true))
			if solution.IsFalse() {
				continue
			}
		}
		result := solution.Substitute(renamed.RHS)
		if term.ContainsBottom(result) {
			logger.Debug("dropping undefined result", "rule", rule.Name(), "result", result)
			continue
		}
		rw.metrics.RewriteSteps.Inc()
		logger.Debug("applied rule", "rule", rule.Name(), "result", result)
		results = append(results, symbolic.NewConstrainedTerm(rw.ctx, result, solution.Project(renamed.Variables())))
	}
	return results
}

// pattern is lhs constrained by the side conditions of r
func pattern(ctx *symbolic.Context, r *definition.Rule, lhs term.Term) *symbolic.ConstrainedTerm {
	reg := ctx.Registry
	requires := symbolic.New(ctx)
	if r.Requires != nil {
		requires.Add(r.Requires, reg.Bool(true))
	}
	lookups := symbolic.New(ctx)
	for _, eq := range r.LookupEqualities(reg) {
		lookups.Add(eq[0], eq[1])
	}
	return symbolic.NewConstrainedTerm(ctx, lhs, requires).WithLookups(lookups)
}

// Rewrite applies the first matching rule until none applies or bound
// steps were taken. A negative bound means no bound. It returns the last
// configuration and the number of steps taken.
func (rw *Rewriter) Rewrite(t term.Term, bound int) (*symbolic.ConstrainedTerm, int, error) {
	runLog := logger.With("run", uuid.NewString())
	current := rw.Initial(t)
	runLog.Debug("rewriting", "term", current.Term(), "bound", bound)
	steps := 0
	for bound < 0 || steps < bound {
		next, err := rw.step(current, FirstMatch)
		if err != nil {
			return current, steps, err
		}
		if len(next) == 0 {
			runLog.Debug("no rule applies", "steps", steps)
			return current, steps, nil
		}
		current = next[0]
		steps++
	}
	runLog.Debug("bound reached", "steps", steps)
	return current, steps, nil
}
