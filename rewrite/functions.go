package rewrite

import (
	"github.com/cottand/ksym/builtins"
	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/symbolic"
	"github.com/cottand/ksym/term"
)

// functions evaluates function calls with the builtin hooks first and the
// function rules of the definition second
type functions struct {
	def *definition.Definition
	// arguments of a call are matched as one constructor term, since the
	// unifier leaves function calls alone
	tuple         *term.KLabel
	deterministic bool
}

var _ symbolic.Evaluator = (*functions)(nil)

func newFunctions(def *definition.Definition, deterministic bool) *functions {
	return &functions{def: def, tuple: def.Registry.Label("#args"), deterministic: deterministic}
}

func (f *functions) Evaluate(ctx *symbolic.Context, t term.Term) term.Term {
	if !t.HasFunction() {
		return t
	}
	return ctx.Registry.Transform(t, func(t term.Term) term.Term {
		app, ok := t.(*term.KApply)
		if !ok || !app.IsFunctionCall() {
			return t
		}
		return f.call(ctx, app)
	})
}

// call evaluates app once its arguments are evaluated. A rule applies when
// its pattern matches and its side conditions are implied. An owise rule
// applies only when every other rule definitely does not. A call already
// being evaluated on the current path is left as is.
func (f *functions) call(ctx *symbolic.Context, app *term.KApply) term.Term {
	reg := ctx.Registry
	if res, ok := builtins.Evaluate(reg, app); ok {
		return f.Evaluate(ctx, res)
	}
	rules := f.def.FunctionRules(app.Label())
	if len(rules) == 0 {
		return app
	}
	if ctx.Guard.Contains(app) {
		logger.Debug("call is already being evaluated", "call", app, "depth", ctx.Guard.Len())
		return app
	}

	inner := ctx.WithGuard(ctx.Guard.With(app))
	subject := symbolic.NewConstrainedTerm(inner, reg.Apply(f.tuple, app.Args()...), nil)
	var result term.Term
	var by *definition.Rule
	undecided := false
	for _, rule := range rules {
		if rule.Attributes.Owise && (result != nil || undecided) {
			break
		}
		renamed := rule.Renamed(reg)
		lhs := renamed.LHS.(*term.KApply)
		p := pattern(inner, renamed, reg.Apply(f.tuple, lhs.Args()...))
		match := subject.MatchImplies(p)
		if match == nil {
			if len(subject.Unify(p)) > 0 {
				undecided = true
			}
			continue
		}
		res := match.Substitute(renamed.RHS)
		if result == nil {
			result, by = res, rule
			if !f.deterministic {
				return result
			}
			continue
		}
		if !term.Equal(result, res) {
			logger.Warn("function rules disagree", "call", app, "rule", by.Name(), "result", result, "other", rule.Name(), "otherResult", res)
		}
	}
	if result == nil {
		return app
	}
	return result
}
