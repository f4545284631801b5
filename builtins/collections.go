package builtins

import (
	"github.com/cottand/ksym/term"
)

func init() {
	register("MAP.lookup", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		m, key, ok := mapAndKey(app, 0, 1)
		if !ok {
			return nil, false
		}
		if v, found := m.Get(key); found {
			return v, true
		}
		if keysDecided(m, key) {
			return r.Bottom(), true
		}
		return nil, false
	})
	register("MAP.in_keys", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		m, key, ok := mapAndKey(app, 1, 0)
		if !ok {
			return nil, false
		}
		if _, found := m.Get(key); found {
			return r.Bool(true), true
		}
		if keysDecided(m, key) {
			return r.Bool(false), true
		}
		return nil, false
	})
	register("MAP.update", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		m, key, ok := mapAndKey(app, 0, 1)
		if !ok || len(app.Args()) != 3 {
			return nil, false
		}
		entries, found := withoutKey(m, key)
		if !found && !keysDecided(m, key) {
			return nil, false
		}
		return r.Map(append(entries, term.MapEntry{Key: key, Value: app.Args()[2]}), m.Frame()), true
	})
	register("MAP.remove", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		m, key, ok := mapAndKey(app, 0, 1)
		if !ok {
			return nil, false
		}
		entries, found := withoutKey(m, key)
		if !found && !keysDecided(m, key) {
			return nil, false
		}
		return r.Map(entries, m.Frame()), true
	})
	register("MAP.size", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		if len(app.Args()) != 1 {
			return nil, false
		}
		m, ok := app.Args()[0].(*term.BuiltinMap)
		if !ok || !keysDecided(m, r.Bottom()) {
			return nil, false
		}
		return r.Int(int64(len(m.Entries()))), true
	})

	register("SET.in", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		args := app.Args()
		if len(args) != 2 {
			return nil, false
		}
		s, ok := args[1].(*term.BuiltinSet)
		if !ok {
			return nil, false
		}
		if s.Contains(args[0]) {
			return r.Bool(true), true
		}
		if s.IsConcrete() && s.IsGround() && args[0].IsGround() {
			return r.Bool(false), true
		}
		return nil, false
	})
	register("SET.union", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		args := app.Args()
		if len(args) != 2 {
			return nil, false
		}
		a, okA := args[0].(*term.BuiltinSet)
		if !okA || !a.IsConcrete() {
			return nil, false
		}
		return r.Set(a.Elements(), args[1]), true
	})
	register("SET.remove", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		args := app.Args()
		if len(args) != 2 {
			return nil, false
		}
		s, ok := args[0].(*term.BuiltinSet)
		if !ok || !args[1].IsGround() {
			return nil, false
		}
		var kept []term.Term
		found := false
		for _, e := range s.Elements() {
			if term.Equal(e, args[1]) {
				found = true
				continue
			}
			if !e.IsGround() {
				return nil, false
			}
			kept = append(kept, e)
		}
		if !found && !s.IsConcrete() {
			return nil, false
		}
		return r.Set(kept, s.Frame()), true
	})
	register("SET.size", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		if len(app.Args()) != 1 {
			return nil, false
		}
		s, ok := app.Args()[0].(*term.BuiltinSet)
		if !ok || !s.IsConcrete() || !s.IsGround() {
			return nil, false
		}
		return r.Int(int64(len(s.Elements()))), true
	})

	register("LIST.get", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		args := app.Args()
		if len(args) != 2 {
			return nil, false
		}
		l, ok := args[0].(*term.BuiltinList)
		idxTok, isTok := args[1].(*term.Token)
		if !ok || !isTok {
			return nil, false
		}
		idx, ok := idxTok.IntValue()
		if !ok || !idx.IsInt64() {
			return nil, false
		}
		i := int(idx.Int64())
		n := len(l.Elements())
		if i < 0 && l.IsConcrete() {
			i += n
		}
		switch {
		case i >= 0 && i < n:
			return l.Elements()[i], true
		case l.IsConcrete():
			return r.Bottom(), true
		}
		return nil, false
	})
	register("LIST.size", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		if len(app.Args()) != 1 {
			return nil, false
		}
		if size, ok := term.ConcreteSize(app.Args()[0]); ok {
			return r.Int(int64(size)), true
		}
		return nil, false
	})
	register("LIST.concat", func(r *term.Registry, app *term.KApply) (term.Term, bool) {
		args := app.Args()
		if len(args) != 2 {
			return nil, false
		}
		l, ok := args[0].(*term.BuiltinList)
		if !ok || !l.IsConcrete() {
			return nil, false
		}
		return r.List(l.Elements(), args[1]), true
	})
}

func mapAndKey(app *term.KApply, mapPos, keyPos int) (*term.BuiltinMap, term.Term, bool) {
	args := app.Args()
	if len(args) <= max(mapPos, keyPos) {
		return nil, nil, false
	}
	m, ok := args[mapPos].(*term.BuiltinMap)
	return m, args[keyPos], ok
}

// keysDecided is true when key provably differs from every key of m
func keysDecided(m *term.BuiltinMap, key term.Term) bool {
	if !m.IsConcrete() || !key.IsGround() || key.HasFunction() {
		return false
	}
	for _, e := range m.Entries() {
		if !e.Key.IsGround() || e.Key.HasFunction() {
			return false
		}
	}
	return true
}

// withoutKey drops the entry for key. found is true when such an entry existed.
func withoutKey(m *term.BuiltinMap, key term.Term) (entries []term.MapEntry, found bool) {
	for _, e := range m.Entries() {
		if term.Equal(e.Key, key) {
			found = true
			continue
		}
		entries = append(entries, e)
	}
	return entries, found
}
