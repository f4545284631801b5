package term

import (
	"slices"
	"strings"
	"unicode"
)

// Production is one signature of a label
type Production struct {
	Args   []*Sort
	Result *Sort
}

func (p Production) equal(other Production) bool {
	return p.Result == other.Result && slices.Equal(p.Args, other.Args)
}

type LabelSpec struct {
	Productions []Production
	Function    bool
	Hook        string
}

// KLabel is interned by its Registry, so labels compare by identity
type KLabel struct {
	name          string
	ordinal       int
	productions   []Production
	function      bool
	hook          string
	predicateSort *Sort
	ite, bottom   bool
	reg           *Registry
}

func (l *KLabel) Name() string              { return l.name }
func (l *KLabel) Ordinal() int              { return l.ordinal }
func (l *KLabel) Hook() string              { return l.hook }
func (l *KLabel) Productions() []Production { return l.productions }
func (l *KLabel) PredicateSort() *Sort      { return l.predicateSort }
func (l *KLabel) IsIfThenElse() bool        { return l.ite }
func (l *KLabel) IsFunction() bool          { return l.function }
func (l *KLabel) IsConstructor() bool       { return !l.function }
func (l *KLabel) Registry() *Registry       { return l.reg }
func (l *KLabel) String() string            { return quoteLabel(l.name) }
func (l *KLabel) isSortPredicate() bool     { return l.predicateSort != nil }
func (l *KLabel) hasSingleProduction() bool { return len(l.productions) <= 1 }

// quoteLabel backquotes names that the KAST text lexer would not read as one identifier
func quoteLabel(name string) string {
	if name == "" {
		return "``"
	}
	for i, r := range name {
		if i == 0 && !(unicode.IsLetter(r) || r == '#' || r == '_') {
			return "`" + name + "`"
		}
		if !isIdentRune(r) {
			return "`" + name + "`"
		}
	}
	if strings.HasPrefix(name, ".") || isUpperStart(name) {
		return "`" + name + "`"
	}
	return name
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '#' || r == '\'' || r == '.'
}

func isUpperStart(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r) || r == '_'
	}
	return false
}
