package builtins

import (
	"math/big"

	"github.com/cottand/ksym/term"
)

func init() {
	intOp := func(name string, op func(a, b *big.Int) (*big.Int, bool)) {
		register(name, func(r *term.Registry, app *term.KApply) (term.Term, bool) {
			a, b, ok := intArgs(app)
			if !ok {
				return nil, false
			}
			res, ok := op(a, b)
			if !ok {
				return nil, false
			}
			return r.BigInt(res), true
		})
	}
	intCmp := func(name string, cmp func(c int) bool) {
		register(name, func(r *term.Registry, app *term.KApply) (term.Term, bool) {
			a, b, ok := intArgs(app)
			if !ok {
				return nil, false
			}
			return r.Bool(cmp(a.Cmp(b))), true
		})
	}

	intOp("INT.add", func(a, b *big.Int) (*big.Int, bool) { return new(big.Int).Add(a, b), true })
	intOp("INT.sub", func(a, b *big.Int) (*big.Int, bool) { return new(big.Int).Sub(a, b), true })
	intOp("INT.mul", func(a, b *big.Int) (*big.Int, bool) { return new(big.Int).Mul(a, b), true })
	// division truncates towards zero; division by zero stays unevaluated
	intOp("INT.div", func(a, b *big.Int) (*big.Int, bool) {
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Quo(a, b), true
	})
	intOp("INT.mod", func(a, b *big.Int) (*big.Int, bool) {
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Rem(a, b), true
	})
	intCmp("INT.lt", func(c int) bool { return c < 0 })
	intCmp("INT.le", func(c int) bool { return c <= 0 })
	intCmp("INT.gt", func(c int) bool { return c > 0 })
	intCmp("INT.ge", func(c int) bool { return c >= 0 })
	intCmp("INT.eq", func(c int) bool { return c == 0 })
	intCmp("INT.ne", func(c int) bool { return c != 0 })

	register("BOOL.and", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		return shortCircuit(r, app, false)
	})
	register("BOOL.or", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		return shortCircuit(r, app, true)
	})
	register("BOOL.not", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		if b, ok := boolArg(app, 0); ok {
			return r.Bool(!b), true
		}
		return nil, false
	})
	register("BOOL.implies", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		a, aOk := boolArg(app, 0)
		b, bOk := boolArg(app, 1)
		switch {
		case aOk && !a, bOk && b:
			return r.Bool(true), true
		case aOk && a:
			return app.Args()[1], true
		case aOk && bOk:
			return r.Bool(!a || b), true
		}
		return nil, false
	})

	register("STRING.concat", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		a, b, ok := stringArgs(app)
		if !ok {
			return nil, false
		}
		return r.String(a + b), true
	})
	register("STRING.eq", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		a, b, ok := stringArgs(app)
		if !ok {
			return nil, false
		}
		return r.Bool(a == b), true
	})

	register("KEQUAL.eq", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		return kEqual(r, app, true)
	})
	register("KEQUAL.ne", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		return kEqual(r, app, false)
	})
	register("KEQUAL.ite", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		args := app.Args()
		if len(args) != 3 {
			return nil, false
		}
		if cond, ok := boolArg(app, 0); ok {
			if cond {
				return args[1], true
			}
			return args[2], true
		}
		if term.Equal(args[1], args[2]) {
			return args[1], true
		}
		return nil, false
	})

	register("K.isSort", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		sort := app.Label().PredicateSort()
		if sort == nil || len(app.Args()) != 1 {
			return nil, false
		}
		arg := app.Args()[0]
		if r.IsSubsortedEq(sort, arg.Sort()) {
			return r.Bool(true), true
		}
		if arg.IsExactSort() || !r.Compatible(sort, arg.Sort()) {
			return r.Bool(false), true
		}
		return nil, false
	})
}

func intArgs(app *term.KApply) (a, b *big.Int, ok bool) {
	args := app.Args()
	if len(args) != 2 {
		return nil, nil, false
	}
	ta, okA := args[0].(*term.Token)
	tb, okB := args[1].(*term.Token)
	if !okA || !okB {
		return nil, nil, false
	}
	a, okA = ta.IntValue()
	b, okB = tb.IntValue()
	return a, b, okA && okB
}

func stringArgs(app *term.KApply) (a, b string, ok bool) {
	args := app.Args()
	if len(args) != 2 {
		return "", "", false
	}
	ta, okA := args[0].(*term.Token)
	tb, okB := args[1].(*term.Token)
	if !okA || !okB || ta.Sort().Name() != term.SortString || tb.Sort().Name() != term.SortString {
		return "", "", false
	}
	return ta.Value(), tb.Value(), true
}

func boolArg(app *term.KApply, i int) (value bool, ok bool) {
	if i >= len(app.Args()) {
		return false, false
	}
	tok, ok := app.Args()[i].(*term.Token)
	if !ok {
		return false, false
	}
	return tok.BoolValue()
}

// shortCircuit evaluates and (absorbing false) or or (absorbing true) with
// one symbolic argument when possible
func shortCircuit(r *term.Registry, app *term.KApply, absorbing bool) (term.Term, bool) {
	args := app.Args()
	if len(args) != 2 {
		return nil, false
	}
	a, aOk := boolArg(app, 0)
	b, bOk := boolArg(app, 1)
	switch {
	case aOk && a == absorbing, bOk && b == absorbing:
		return r.Bool(absorbing), true
	case aOk:
		return args[1], true
	case bOk:
		return args[0], true
	}
	return nil, false
}

func kEqual(r *term.Registry, app *term.KApply, positive bool) (term.Term, bool) {
	args := app.Args()
	if len(args) != 2 {
		return nil, false
	}
	if term.Equal(args[0], args[1]) {
		return r.Bool(positive), true
	}
	if args[0].IsGround() && args[1].IsGround() && !args[0].HasFunction() && !args[1].HasFunction() {
		return r.Bool(!positive), true
	}
	return nil, false
}
