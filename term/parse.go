package term

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cottand/ksym/kerr"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokQuoted // `label`
	tokInt
	tokString
	tokPunct
	tokOpenCell
	tokCloseCell
)

type lexeme struct {
	kind   tokKind
	text   string
	offset int
}

func (l lexeme) is(kind tokKind, text string) bool { return l.kind == kind && l.text == text }

var puncts = []string{"|->", "...", "~>", "(", ")", ",", ":", "|", "{", "}", "[", "]"}

func lex(input string) ([]lexeme, error) {
	var out []lexeme
	i := 0
	fail := func(offset int, format string, args ...any) error {
		return kerr.New(&kerr.TermSyntaxError{Input: input, Offset: offset, Message: fmt.Sprintf(format, args...)})
	}
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '`':
			end := strings.IndexByte(input[i+1:], '`')
			if end < 0 {
				return nil, fail(i, "unterminated quoted label")
			}
			out = append(out, lexeme{kind: tokQuoted, text: input[i+1 : i+1+end], offset: i})
			i += end + 2
		case r == '"':
			j := i + 1
			for j < len(input) && input[j] != '"' {
				if input[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(input) {
				return nil, fail(i, "unterminated string")
			}
			s, err := strconv.Unquote(input[i : j+1])
			if err != nil {
				return nil, fail(i, "bad string literal: %v", err)
			}
			out = append(out, lexeme{kind: tokString, text: s, offset: i})
			i = j + 1
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(input) && isDigit(input[i+1])):
			j := i + 1
			for j < len(input) && isDigit(input[j]) {
				j++
			}
			out = append(out, lexeme{kind: tokInt, text: input[i:j], offset: i})
			i = j
		case r == '<':
			closing := strings.HasPrefix(input[i:], "</")
			start := i + 1
			if closing {
				start++
			}
			end := strings.IndexByte(input[start:], '>')
			if end < 0 {
				return nil, fail(i, "unterminated cell tag")
			}
			kind := tokOpenCell
			if closing {
				kind = tokCloseCell
			}
			out = append(out, lexeme{kind: kind, text: strings.TrimSpace(input[start : start+end]), offset: i})
			i = start + end + 1
		case r == '.' && i+1 < len(input) && unicode.IsLetter(rune(input[i+1])):
			j := i + 1
			for j < len(input) && unicode.IsLetter(rune(input[j])) {
				j++
			}
			out = append(out, lexeme{kind: tokIdent, text: input[i:j], offset: i})
			i = j
		case unicode.IsLetter(r) || r == '_' || r == '#':
			j := i + size
			for j < len(input) {
				next, n := utf8.DecodeRuneInString(input[j:])
				if !isIdentRune(next) || strings.HasPrefix(input[j:], "...") {
					break
				}
				j += n
			}
			out = append(out, lexeme{kind: tokIdent, text: input[i:j], offset: i})
			i = j
		default:
			matched := false
			for _, p := range puncts {
				if strings.HasPrefix(input[i:], p) {
					out = append(out, lexeme{kind: tokPunct, text: p, offset: i})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fail(i, "unexpected character %q", r)
			}
		}
	}
	return append(out, lexeme{kind: tokEOF, offset: len(input)}), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ParseSession parses several related KAST texts, such as the sides of a
// rule, so that a variable annotated with a sort in one place has that sort
// everywhere. Unannotated variables with no known sort are KItems.
type ParseSession struct {
	reg  *Registry
	vars map[string]*Sort
	// CellSort gives the sort of the frame that '...' stands for inside a cell
	CellSort func(CellLabel) *Sort
}

func NewParseSession(r *Registry) *ParseSession {
	return &ParseSession{reg: r, vars: make(map[string]*Sort)}
}

// Parse reads a single term with a fresh session
func Parse(r *Registry, input string) (Term, error) {
	return NewParseSession(r).Parse(input)
}

// MustParse is Parse for inputs known to be well-formed
func MustParse(r *Registry, input string) Term {
	t, err := Parse(r, input)
	if err != nil {
		panic(err)
	}
	return t
}

// Declare records the variable sort annotations in inputs without building terms
func (s *ParseSession) Declare(inputs ...string) error {
	for _, input := range inputs {
		toks, err := lex(input)
		if err != nil {
			return err
		}
		s.prescan(toks)
	}
	return nil
}

func (s *ParseSession) prescan(toks []lexeme) {
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].kind == tokIdent && isVariableName(toks[i].text) && toks[i+1].is(tokPunct, ":") && toks[i+2].kind == tokIdent {
			if _, ok := s.vars[toks[i].text]; !ok && toks[i].text != "_" {
				s.vars[toks[i].text] = s.reg.Sort(toks[i+2].text)
			}
		}
	}
}

// Parse reads input as a term. Errors are *kerr.TermSyntaxError, or the
// sort and invariant errors raised while building the term.
func (s *ParseSession) Parse(input string) (t Term, err error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	s.prescan(toks)
	p := &parser{session: s, reg: s.reg, input: input, toks: toks}
	defer func() {
		if rec := recover(); rec != nil {
			if kErr, ok := rec.(kerr.KError); ok {
				t, err = nil, kErr
				return
			}
			panic(rec)
		}
	}()
	t = p.sequence()
	if _, ok := t.(*Cell); ok && p.peek().kind == tokOpenCell {
		parts := []Term{t}
		for p.peek().kind == tokOpenCell {
			parts = append(parts, p.cell())
		}
		t = p.reg.Bag(parts...)
	}
	if p.peek().kind != tokEOF {
		p.fail("unexpected %q after term", p.peek().text)
	}
	return t, nil
}

func isVariableName(name string) bool {
	return isUpperStart(name)
}

type parser struct {
	session *ParseSession
	reg     *Registry
	input   string
	toks    []lexeme
	pos     int
}

func (p *parser) peek() lexeme { return p.toks[p.pos] }

func (p *parser) peekAt(n int) lexeme {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() lexeme {
	l := p.toks[p.pos]
	if l.kind != tokEOF {
		p.pos++
	}
	return l
}

func (p *parser) fail(format string, args ...any) {
	panic(kerr.New(&kerr.TermSyntaxError{Input: p.input, Offset: p.peek().offset, Message: fmt.Sprintf(format, args...)}))
}

func (p *parser) expect(kind tokKind, text string) {
	if !p.peek().is(kind, text) {
		p.fail("expected %q, found %q", text, p.peek().text)
	}
	p.next()
}

func (p *parser) accept(text string) bool {
	if p.peek().is(tokPunct, text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) sequence() Term {
	parts := []Term{p.primary()}
	for p.accept("~>") {
		parts = append(parts, p.primary())
	}
	return p.reg.KSeq(parts...)
}

func (p *parser) primary() Term {
	l := p.peek()
	switch l.kind {
	case tokInt:
		p.next()
		return p.reg.Token(p.reg.Sorts.Int, strings.TrimPrefix(l.text, "+"))
	case tokString:
		p.next()
		return p.reg.String(l.text)
	case tokQuoted:
		p.next()
		return p.application(p.reg.Label(l.text))
	case tokOpenCell:
		return p.cell()
	case tokPunct:
		if p.accept("(") {
			t := p.sequence()
			p.expect(tokPunct, ")")
			return t
		}
		p.fail("unexpected %q", l.text)
	case tokIdent:
		return p.ident()
	}
	p.fail("unexpected end of input")
	return nil
}

func (p *parser) ident() Term {
	l := p.next()
	switch l.text {
	case "true", "false":
		return p.reg.Bool(l.text == "true")
	case ".K":
		return p.reg.emptyK
	case ".Bag":
		return p.reg.emptyBag
	case ".Map":
		return p.reg.Map(nil, nil)
	case ".Set":
		return p.reg.Set(nil, nil)
	case ".List":
		return p.reg.List(nil, nil)
	case "HOLE":
		return p.reg.hole
	case "#token":
		p.expect(tokPunct, "(")
		value := p.next()
		p.expect(tokPunct, ",")
		sortName := p.next()
		p.expect(tokPunct, ")")
		if value.kind != tokString || sortName.kind != tokString {
			p.fail("#token takes two strings")
		}
		return p.reg.Token(p.reg.Sort(sortName.text), value.text)
	case "#if":
		cond := p.sequence()
		p.expect(tokIdent, "#then")
		then := p.sequence()
		p.expect(tokIdent, "#else")
		els := p.sequence()
		p.expect(tokIdent, "#fi")
		return p.reg.IfThenElse(cond, then, els)
	case "Map":
		if p.peek().is(tokPunct, "{") {
			return p.mapLiteral()
		}
	case "Set":
		if p.peek().is(tokPunct, "{") {
			p.next()
			elems, frame := p.elements("}")
			return p.reg.Set(elems, frame)
		}
	case "List":
		if p.peek().is(tokPunct, "[") {
			p.next()
			elems, frame := p.elements("]")
			return p.reg.List(elems, frame)
		}
	}
	if p.peek().is(tokPunct, "(") || !isVariableName(l.text) {
		return p.application(p.reg.Label(l.text))
	}
	return p.variable(l.text)
}

func (p *parser) variable(name string) Variable {
	var sort *Sort
	if p.accept(":") {
		sort = p.sort()
	}
	if name == "_" {
		if sort == nil {
			sort = p.reg.Sorts.KItem
		}
		return p.reg.FreshVar(sort)
	}
	if sort == nil {
		sort = p.session.vars[name]
	}
	if sort == nil {
		sort = p.reg.Sorts.KItem
	}
	return p.reg.Var(name, sort)
}

func (p *parser) sort() *Sort {
	name := p.next()
	if name.kind != tokIdent {
		p.fail("expected a sort name")
	}
	var params []*Sort
	if p.peek().is(tokPunct, "{") && p.peekAt(1).kind == tokIdent && (p.peekAt(2).is(tokPunct, "}") || p.peekAt(2).is(tokPunct, ",")) {
		p.next()
		for {
			params = append(params, p.sort())
			if !p.accept(",") {
				break
			}
		}
		p.expect(tokPunct, "}")
	}
	return p.reg.Sort(name.text, params...)
}

func (p *parser) application(label *KLabel) Term {
	if !p.accept("(") {
		return p.reg.Apply(label)
	}
	var args []Term
	if !p.accept(")") {
		for {
			args = append(args, p.sequence())
			if p.accept(")") {
				break
			}
			p.expect(tokPunct, ",")
		}
	}
	return p.reg.Apply(label, args...)
}

func (p *parser) mapLiteral() Term {
	p.expect(tokPunct, "{")
	var entries []MapEntry
	var frame Term
	for !p.accept("}") {
		if p.accept("|") {
			frame = p.sequence()
			p.expect(tokPunct, "}")
			break
		}
		key := p.sequence()
		p.expect(tokPunct, "|->")
		entries = append(entries, MapEntry{Key: key, Value: p.sequence()})
		if !p.accept(",") && !p.peek().is(tokPunct, "|") && !p.peek().is(tokPunct, "}") {
			p.fail("expected ',' or '}' in map")
		}
	}
	return p.reg.Map(entries, frame)
}

func (p *parser) elements(closing string) ([]Term, Term) {
	var elems []Term
	for !p.accept(closing) {
		if p.accept("|") {
			frame := p.sequence()
			p.expect(tokPunct, closing)
			return elems, frame
		}
		elems = append(elems, p.sequence())
		if !p.accept(",") && !p.peek().is(tokPunct, "|") && !p.peek().is(tokPunct, closing) {
			p.fail("expected ',' or %q", closing)
		}
	}
	return elems, nil
}

func (p *parser) cell() Term {
	open := p.next()
	label := CellLabel(open.text)
	var content Term
	switch {
	case p.peek().kind == tokOpenCell || p.peek().is(tokIdent, ".Bag"):
		content = p.bag(label)
	case p.peek().is(tokPunct, "..."):
		p.next()
		content = p.dots(label, nil)
	default:
		content = p.sequence()
		if p.accept("...") {
			content = p.dots(label, content)
		}
	}
	if !p.peek().is(tokCloseCell, open.text) {
		p.fail("expected </%s>", open.text)
	}
	p.next()
	return p.reg.Cell(label, content)
}

func (p *parser) bag(label CellLabel) Term {
	var parts []Term
	for p.peek().kind != tokCloseCell && p.peek().kind != tokEOF {
		switch {
		case p.peek().kind == tokOpenCell:
			parts = append(parts, p.cell())
		case p.peek().is(tokIdent, ".Bag"):
			p.next()
		case p.accept("..."):
			parts = append(parts, p.dotVar(label, p.reg.Sorts.Bag))
		default:
			parts = append(parts, p.primary())
		}
	}
	return p.reg.Bag(parts...)
}

// dots completes the content of a cell followed by '...' with a frame
func (p *parser) dots(label CellLabel, content Term) Term {
	if content == nil {
		sort := p.reg.Sorts.K
		if p.session.CellSort != nil {
			if s := p.session.CellSort(label); s != nil {
				sort = s
			}
		}
		return p.dotVar(label, sort)
	}
	switch c := content.(type) {
	case *BuiltinList:
		if c.frame == nil {
			return p.reg.List(c.elements, p.dotVar(label, p.reg.Sorts.List))
		}
	case *BuiltinMap:
		if c.frame == nil {
			return p.reg.Map(c.entries, p.dotVar(label, p.reg.Sorts.Map))
		}
	case *BuiltinSet:
		if c.frame == nil {
			return p.reg.Set(c.elements, p.dotVar(label, p.reg.Sorts.Set))
		}
	}
	return p.reg.KSeq(content, p.dotVar(label, p.reg.Sorts.K))
}

func (p *parser) dotVar(label CellLabel, sort *Sort) Variable {
	return p.reg.Var("DotVar_"+string(label), sort)
}
