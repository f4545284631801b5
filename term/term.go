package term

import (
	"fmt"
	"hash/fnv"
	"math/big"
	"strconv"

	"github.com/cottand/ksym/kerr"
)

// Term is an immutable node of the term algebra. Sub-terms may be shared
// between parents. The set of implementations is closed: Variable, *Token,
// *KApply, *Hole, *KSequence, *Cell, *CellCollection, *BuiltinMap,
// *BuiltinSet and *BuiltinList.
type Term interface {
	fmt.Stringer
	Kind() Kind
	Sort() *Sort
	// IsExactSort is true when every instance of this term has exactly Sort(),
	// never a strict subsort of it
	IsExactSort() bool
	IsGround() bool
	Hash() uint64
	HasCell() bool
	// HasFunction is true when some sub-term is a function call
	HasFunction() bool
	isTerm()
}

var (
	_ Term = Variable{}
	_ Term = (*Token)(nil)
	_ Term = (*KApply)(nil)
	_ Term = (*Hole)(nil)
	_ Term = (*KSequence)(nil)
	_ Term = (*Cell)(nil)
	_ Term = (*CellCollection)(nil)
	_ Term = (*BuiltinMap)(nil)
	_ Term = (*BuiltinSet)(nil)
	_ Term = (*BuiltinList)(nil)
)

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func hashCombine(h, v uint64) uint64 {
	return (h ^ v) * 1099511628211
}

// Variable is compared by value: two variables are the same iff they have the
// same name and sort. Names starting with '_' are anonymous.
type Variable struct {
	name string
	sort *Sort
}

func (r *Registry) Var(name string, sort *Sort) Variable {
	return Variable{name: name, sort: sort}
}

func (v Variable) Name() string      { return v.name }
func (v Variable) Sort() *Sort       { return v.sort }
func (v Variable) Kind() Kind        { return KindOfSort(v.sort) }
func (v Variable) IsExactSort() bool { return false }
func (v Variable) IsGround() bool    { return false }
func (v Variable) HasCell() bool     { return false }
func (v Variable) HasFunction() bool { return false }
func (v Variable) Anonymous() bool   { return len(v.name) > 0 && v.name[0] == '_' }
func (v Variable) Hash() uint64 {
	return hashCombine(hashString(v.name), hashString(v.sort.name))
}
func (Variable) isTerm() {}

// Token is a constant of a builtin sort
type Token struct {
	sort  *Sort
	value string
	hash  uint64
}

func (r *Registry) Token(sort *Sort, value string) *Token {
	return &Token{sort: sort, value: value, hash: hashCombine(hashString(value), hashString(sort.name))}
}

func (r *Registry) Int(i int64) *Token {
	return r.Token(r.Sorts.Int, strconv.FormatInt(i, 10))
}

func (r *Registry) BigInt(i *big.Int) *Token {
	return r.Token(r.Sorts.Int, i.String())
}

func (r *Registry) Bool(b bool) *Token {
	return r.Token(r.Sorts.Bool, strconv.FormatBool(b))
}

func (r *Registry) String(s string) *Token {
	return r.Token(r.Sorts.String, s)
}

func (t *Token) Value() string     { return t.value }
func (t *Token) Sort() *Sort       { return t.sort }
func (t *Token) Kind() Kind        { return KindKItem }
func (t *Token) IsExactSort() bool { return true }
func (t *Token) IsGround() bool    { return true }
func (t *Token) HasCell() bool     { return false }
func (t *Token) HasFunction() bool { return false }
func (t *Token) Hash() uint64      { return t.hash }
func (*Token) isTerm()             {}

// IntValue parses the token as an arbitrary precision integer
func (t *Token) IntValue() (*big.Int, bool) {
	if t.sort.name != SortInt {
		return nil, false
	}
	return new(big.Int).SetString(t.value, 10)
}

func (t *Token) BoolValue() (value bool, ok bool) {
	if t.sort.name != SortBool {
		return false, false
	}
	b, err := strconv.ParseBool(t.value)
	return b, err == nil
}

// KApply is a label applied to a list of arguments
type KApply struct {
	label       *KLabel
	args        []Term
	sort        *Sort
	exact       bool
	hash        uint64
	ground      bool
	hasCell     bool
	hasFunction bool
}

// Apply builds label(args...). It panics with a *kerr.SortComputationError when
// the label is overloaded and no production accepts the argument sorts.
func (r *Registry) Apply(label *KLabel, args ...Term) *KApply {
	t := &KApply{label: label, args: args, ground: true}
	t.hash = hashCombine(hashString(label.name), uint64(len(args)))
	for _, arg := range args {
		t.hash = hashCombine(t.hash, arg.Hash())
		t.ground = t.ground && arg.IsGround()
		t.hasCell = t.hasCell || arg.HasCell()
		t.hasFunction = t.hasFunction || arg.HasFunction()
	}
	t.hasFunction = t.hasFunction || label.function
	t.sort = r.computeSort(label, args)
	t.exact = label.IsConstructor() && label.hasSingleProduction()
	return t
}

func (r *Registry) computeSort(label *KLabel, args []Term) *Sort {
	switch {
	case label.ite && len(args) == 3:
		if lub := r.lub(args[1].Sort(), args[2].Sort()); lub != nil {
			return lub
		}
		return r.Sorts.K
	case len(label.productions) == 0:
		return r.Sorts.KItem
	case len(label.productions) == 1:
		return label.productions[0].Result
	}

	var result *Sort
	for _, p := range label.productions {
		if len(p.Args) != len(args) {
			continue
		}
		accepts := true
		for i, arg := range args {
			// variables may still be instantiated to a subsort
			if !r.IsSubsortedEq(p.Args[i], arg.Sort()) && (arg.IsExactSort() || !r.Compatible(p.Args[i], arg.Sort())) {
				accepts = false
				break
			}
		}
		if accepts && (result == nil || r.IsSubsorted(result, p.Result)) {
			result = p.Result
		}
	}
	if result == nil {
		argSorts := make([]string, len(args))
		for i, arg := range args {
			argSorts[i] = arg.Sort().String()
		}
		panic(kerr.New(&kerr.SortComputationError{Label: label.name, ArgSorts: argSorts}))
	}
	return result
}

// lub is the larger of a and b when they are related, nil otherwise
func (r *Registry) lub(a, b *Sort) *Sort {
	if r.IsSubsortedEq(a, b) {
		return a
	}
	if r.IsSubsortedEq(b, a) {
		return b
	}
	return nil
}

func (t *KApply) Label() *KLabel    { return t.label }
func (t *KApply) Args() []Term      { return t.args }
func (t *KApply) Sort() *Sort       { return t.sort }
func (t *KApply) Kind() Kind        { return KindKItem }
func (t *KApply) IsExactSort() bool { return t.exact }
func (t *KApply) IsGround() bool    { return t.ground }
func (t *KApply) HasCell() bool     { return t.hasCell }
func (t *KApply) HasFunction() bool { return t.hasFunction }
func (t *KApply) Hash() uint64      { return t.hash }
func (*KApply) isTerm()             {}

// IsFunctionCall is true when the head label is a function, a predicate or an if-then-else
func (t *KApply) IsFunctionCall() bool { return t.label.function }

// HolePosition is the index of the first argument that is the Hole, or -1
func (t *KApply) HolePosition() int {
	for i, arg := range t.args {
		if _, ok := arg.(*Hole); ok {
			return i
		}
	}
	return -1
}

// Hole marks the frozen position of a heated computation. Each Registry has exactly one.
type Hole struct {
	sort *Sort
}

func (r *Registry) Hole() *Hole { return r.hole }

func (h *Hole) Sort() *Sort       { return h.sort }
func (h *Hole) Kind() Kind        { return KindKItem }
func (h *Hole) IsExactSort() bool { return false }
func (h *Hole) IsGround() bool    { return true }
func (h *Hole) HasCell() bool     { return false }
func (h *Hole) HasFunction() bool { return false }
func (h *Hole) Hash() uint64      { return 0x9e3779b97f4a7c15 }
func (*Hole) isTerm()             {}

// Bottom is the result of a failed lookup; an equality involving it never holds
func (r *Registry) Bottom() *KApply { return r.bottom }

func IsBottom(t Term) bool {
	app, ok := t.(*KApply)
	return ok && app.label.bottom
}

// ContainsBottom reports whether Bottom occurs anywhere in t
func ContainsBottom(t Term) bool {
	found := false
	Visit(t, func(t Term) bool {
		found = found || IsBottom(t)
		return !found
	})
	return found
}

func IsIfThenElse(t Term) bool {
	app, ok := t.(*KApply)
	return ok && app.label.ite && len(app.args) == 3
}

// IfThenElse builds #if cond #then a #else b #fi
func (r *Registry) IfThenElse(cond, then, els Term) *KApply {
	return r.Apply(r.iteLabel, cond, then, els)
}

// IsFunctionCall is true for a KApply whose label is a function
func IsFunctionCall(t Term) bool {
	app, ok := t.(*KApply)
	return ok && app.label.function
}
