// Package builtins evaluates the hooked labels of the builtin sorts on
// concrete arguments.
package builtins

import (
	"github.com/cottand/ksym/term"
)

// Hook evaluates app. It returns false when the arguments are not concrete
// enough to decide the result yet.
type Hook func(r *term.Registry, app *term.KApply) (term.Term, bool)

var hooks = map[string]Hook{}

func register(name string, hook Hook) {
	if _, ok := hooks[name]; ok {
		panic("hook registered twice: " + name)
	}
	hooks[name] = hook
}

// Lookup returns the implementation of the hook called name
func Lookup(name string) (Hook, bool) {
	h, ok := hooks[name]
	return h, ok
}

// Evaluate runs the hook of app's label, if it has one
func Evaluate(r *term.Registry, app *term.KApply) (term.Term, bool) {
	name := app.Label().Hook()
	if name == "" {
		return nil, false
	}
	h, ok := hooks[name]
	if !ok {
		return nil, false
	}
	return h(r, app)
}

type labelDecl struct {
	name   string
	hook   string
	args   []string
	result string
}

// labels of the builtin operations, declared by Declare
const (
	LabelMapLookup  = "Map:lookup"
	LabelMapUpdate  = "Map:update"
	LabelMapRemove  = "Map:remove"
	LabelMapInKeys  = "Map:in_keys"
	LabelMapSize    = "Map:size"
	LabelSetIn      = "Set:in"
	LabelSetUnion   = "Set:union"
	LabelSetRemove  = "Set:remove"
	LabelSetSize    = "Set:size"
	LabelListGet    = "List:get"
	LabelListSize   = "List:size"
	LabelListConcat = "List:concat"
	LabelEqK        = "_==K_"
	LabelNeK        = "_=/=K_"
	LabelAndBool    = "_andBool_"
	LabelNotBool    = "notBool_"
)

var declarations = []labelDecl{
	{"_+Int_", "INT.add", []string{"Int", "Int"}, "Int"},
	{"_-Int_", "INT.sub", []string{"Int", "Int"}, "Int"},
	{"_*Int_", "INT.mul", []string{"Int", "Int"}, "Int"},
	{"_/Int_", "INT.div", []string{"Int", "Int"}, "Int"},
	{"_%Int_", "INT.mod", []string{"Int", "Int"}, "Int"},
	{"_<Int_", "INT.lt", []string{"Int", "Int"}, "Bool"},
	{"_<=Int_", "INT.le", []string{"Int", "Int"}, "Bool"},
	{"_>Int_", "INT.gt", []string{"Int", "Int"}, "Bool"},
	{"_>=Int_", "INT.ge", []string{"Int", "Int"}, "Bool"},
	{"_==Int_", "INT.eq", []string{"Int", "Int"}, "Bool"},
	{"_=/=Int_", "INT.ne", []string{"Int", "Int"}, "Bool"},
	{LabelAndBool, "BOOL.and", []string{"Bool", "Bool"}, "Bool"},
	{"_orBool_", "BOOL.or", []string{"Bool", "Bool"}, "Bool"},
	{LabelNotBool, "BOOL.not", []string{"Bool"}, "Bool"},
	{"_impliesBool_", "BOOL.implies", []string{"Bool", "Bool"}, "Bool"},
	{"_+String_", "STRING.concat", []string{"String", "String"}, "String"},
	{"_==String_", "STRING.eq", []string{"String", "String"}, "Bool"},
	{LabelEqK, "KEQUAL.eq", []string{"K", "K"}, "Bool"},
	{LabelNeK, "KEQUAL.ne", []string{"K", "K"}, "Bool"},
	{LabelMapLookup, "MAP.lookup", []string{"Map", "KItem"}, "KItem"},
	{LabelMapUpdate, "MAP.update", []string{"Map", "KItem", "KItem"}, "Map"},
	{LabelMapRemove, "MAP.remove", []string{"Map", "KItem"}, "Map"},
	{LabelMapInKeys, "MAP.in_keys", []string{"KItem", "Map"}, "Bool"},
	{LabelMapSize, "MAP.size", []string{"Map"}, "Int"},
	{LabelSetIn, "SET.in", []string{"KItem", "Set"}, "Bool"},
	{LabelSetUnion, "SET.union", []string{"Set", "Set"}, "Set"},
	{LabelSetRemove, "SET.remove", []string{"Set", "KItem"}, "Set"},
	{LabelSetSize, "SET.size", []string{"Set"}, "Int"},
	{LabelListGet, "LIST.get", []string{"List", "Int"}, "KItem"},
	{LabelListSize, "LIST.size", []string{"List"}, "Int"},
	{LabelListConcat, "LIST.concat", []string{"List", "List"}, "List"},
}

// Declare adds the builtin function labels to r
func Declare(r *term.Registry) {
	for _, d := range declarations {
		args := make([]*term.Sort, len(d.args))
		for i, a := range d.args {
			args[i] = r.Sort(a)
		}
		r.DeclareLabel(d.name, term.LabelSpec{
			Productions: []term.Production{{Args: args, Result: r.Sort(d.result)}},
			Function:    true,
			Hook:        d.hook,
		})
	}
}

// Call builds the application of the builtin label name
func Call(r *term.Registry, name string, args ...term.Term) *term.KApply {
	return r.Apply(r.Label(name), args...)
}
