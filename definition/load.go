package definition

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cottand/ksym/builtins"
	"github.com/cottand/ksym/internal/log"
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var logger = log.Section("definition")

type document struct {
	Sorts           []string     `yaml:"sorts"`
	Subsorts        []subsortDoc `yaml:"subsorts" validate:"dive"`
	Syntax          []syntaxDoc  `yaml:"syntax" validate:"dive"`
	Cells           []cellDoc    `yaml:"cells" validate:"required,min=1,dive"`
	ComputationCell string       `yaml:"computation"`
	Rules           []ruleDoc    `yaml:"rules" validate:"dive"`
}

type subsortDoc struct {
	Big   string `yaml:"big" validate:"required"`
	Small string `yaml:"small" validate:"required"`
}

type syntaxDoc struct {
	Label    string   `yaml:"label" validate:"required"`
	Args     []string `yaml:"args" validate:"dive,required"`
	Result   string   `yaml:"result" validate:"required"`
	Function bool     `yaml:"function"`
	Hook     string   `yaml:"hook"`
}

type cellDoc struct {
	Label        string `yaml:"label" validate:"required"`
	Sort         string `yaml:"sort"`
	Multiplicity string `yaml:"multiplicity" validate:"omitempty,oneof=one optional star"`
	Stream       string `yaml:"stream" validate:"omitempty,oneof=stdin stdout stderr"`
	Indexed      bool   `yaml:"indexed"`
	Parent       string `yaml:"parent"`
}

type ruleDoc struct {
	Label      string      `yaml:"label"`
	LHS        string      `yaml:"lhs" validate:"required"`
	RHS        string      `yaml:"rhs" validate:"required"`
	Requires   string      `yaml:"requires"`
	Ensures    string      `yaml:"ensures"`
	Lookups    []lookupDoc `yaml:"lookups" validate:"dive"`
	Attributes []string    `yaml:"attributes" validate:"dive,required"`
}

type lookupDoc struct {
	Kind  string `yaml:"kind" validate:"required,oneof=map set list"`
	Base  string `yaml:"base" validate:"required"`
	Key   string `yaml:"key" validate:"required"`
	Value string `yaml:"value" validate:"required_unless=Kind set"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads a YAML definition from path
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open definition %s", path)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a YAML definition into a fresh registry
func Load(r io.Reader) (*Definition, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "could not decode definition")
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, errors.Wrap(err, "invalid definition")
	}

	reg := term.NewRegistry()
	builtins.Declare(reg)
	d := New(reg)
	if doc.ComputationCell != "" {
		d.ComputationCell = term.CellLabel(doc.ComputationCell)
	}
	for _, s := range doc.Sorts {
		reg.Sort(s)
	}
	for _, s := range doc.Subsorts {
		reg.AddSubsort(reg.Sort(s.Big), reg.Sort(s.Small))
	}
	for _, s := range doc.Syntax {
		args := make([]*term.Sort, len(s.Args))
		for i, a := range s.Args {
			args[i] = reg.Sort(a)
		}
		reg.DeclareLabel(s.Label, term.LabelSpec{
			Productions: []term.Production{{Args: args, Result: reg.Sort(s.Result)}},
			Function:    s.Function,
			Hook:        s.Hook,
		})
	}
	for _, c := range doc.Cells {
		info := CellInfo{
			Label:        term.CellLabel(c.Label),
			Multiplicity: parseMultiplicity(c.Multiplicity),
			Stream:       parseStream(c.Stream),
			Indexed:      c.Indexed,
			Parent:       term.CellLabel(c.Parent),
		}
		if c.Sort != "" {
			info.Sort = reg.Sort(c.Sort)
		}
		if err := d.DeclareCell(info); err != nil {
			return nil, err
		}
	}

	errs := &kerr.Errors{}
	for i, rd := range doc.Rules {
		rule, err := d.parseRule(rd)
		if err != nil {
			where := rd.Label
			if where == "" {
				where = fmt.Sprintf("rule %d", i)
			}
			var kErr kerr.KError
			if errors.As(err, &kErr) && kErr.Code() == kerr.DefinitionLoad {
				errs.With(kErr)
			} else {
				errs.With(kerr.New(&kerr.DefinitionLoadError{Where: where, Message: err.Error()}))
			}
			continue
		}
		d.AddRule(rule)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	logger.Debug("loaded definition", "rules", len(d.rules), "cells", len(d.cellOrder))
	return d, nil
}

func parseMultiplicity(s string) term.Multiplicity {
	switch s {
	case "optional":
		return term.Optional
	case "star":
		return term.Star
	default:
		return term.One
	}
}

func parseStream(s string) Stream {
	switch s {
	case "stdin":
		return Stdin
	case "stdout":
		return Stdout
	case "stderr":
		return Stderr
	default:
		return NoStream
	}
}

// Session returns a parse session that knows the sorts of this definition's cells
func (d *Definition) Session() *term.ParseSession {
	s := term.NewParseSession(d.Registry)
	s.CellSort = d.CellSort
	return s
}

// ParseTerm parses a configuration or pattern in the context of d
func (d *Definition) ParseTerm(input string) (term.Term, error) {
	return d.Session().Parse(input)
}

func (d *Definition) parseRule(rd ruleDoc) (*Rule, error) {
	session := d.Session()
	texts := []string{rd.LHS, rd.RHS, rd.Requires, rd.Ensures}
	for _, l := range rd.Lookups {
		texts = append(texts, l.Base, l.Key, l.Value)
	}
	if err := session.Declare(texts...); err != nil {
		return nil, err
	}
	parse := func(s string) (term.Term, error) {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return session.Parse(s)
	}

	r := &Rule{Label: rd.Label}
	var err error
	if r.LHS, err = parse(rd.LHS); err != nil {
		return nil, err
	}
	if r.RHS, err = parse(rd.RHS); err != nil {
		return nil, err
	}
	if r.Requires, err = parse(rd.Requires); err != nil {
		return nil, err
	}
	if r.Ensures, err = parse(rd.Ensures); err != nil {
		return nil, err
	}
	for _, ld := range rd.Lookups {
		l := Lookup{Kind: MapLookup}
		switch ld.Kind {
		case "set":
			l.Kind = SetLookup
		case "list":
			l.Kind = ListLookup
		}
		if l.Base, err = parse(ld.Base); err != nil {
			return nil, err
		}
		if l.Key, err = parse(ld.Key); err != nil {
			return nil, err
		}
		if l.Value, err = parse(ld.Value); err != nil {
			return nil, err
		}
		r.Lookups = append(r.Lookups, l)
	}
	if err := parseAttributes(rd.Attributes, &r.Attributes); err != nil {
		return nil, kerr.New(&kerr.DefinitionLoadError{Where: r.Name(), Message: err.Error()})
	}

	if r.FunctionLabel() == nil {
		if r.LHS, err = d.wrapFragment(r.LHS); err != nil {
			return nil, kerr.New(&kerr.DefinitionLoadError{Where: r.Name(), Message: err.Error()})
		}
		if r.RHS, err = d.wrapFragment(r.RHS); err != nil {
			return nil, kerr.New(&kerr.DefinitionLoadError{Where: r.Name(), Message: err.Error()})
		}
		if r.Attributes.Stream == NoStream {
			for _, s := range d.StreamCells() {
				if len(term.FindCells(r.LHS, s.Label)) > 0 {
					r.Attributes.Stream = s.Stream
					break
				}
			}
		}
	}
	return r, nil
}

func parseAttributes(attrs []string, into *Attributes) error {
	for _, a := range attrs {
		switch a {
		case "heat":
			into.Heat = true
		case "cool":
			into.Cool = true
		case "owise":
			into.Owise = true
		case "stdin", "stdout", "stderr":
			into.Stream = parseStream(a)
		default:
			key, value, ok := strings.Cut(a, "=")
			if !ok {
				return fmt.Errorf("unknown attribute %q", a)
			}
			if into.Extra == nil {
				into.Extra = make(map[string]string)
			}
			into.Extra[key] = value
		}
	}
	if into.Heat && into.Cool {
		return fmt.Errorf("a rule cannot both heat and cool")
	}
	return nil
}

// wrapFragment completes a rule side written as cell fragments into a full
// configuration pattern rooted at the root cell. Every enclosing cell gets a
// Bag frame named after it, so both sides of a rule share the frames.
// A side that is not made of cells is the top of the computation cell.
func (d *Definition) wrapFragment(t term.Term) (term.Term, error) {
	reg := d.Registry
	var cells []*term.Cell
	switch t := t.(type) {
	case *term.Cell:
		cells = []*term.Cell{t}
	case *term.CellCollection:
		if len(t.Frames()) > 0 {
			return nil, fmt.Errorf("top level frames %v are not supported", t.Frames())
		}
		cells = t.Cells()
	default:
		if _, ok := d.cells[d.ComputationCell]; !ok {
			return t, nil
		}
		cells = []*term.Cell{reg.Cell(d.ComputationCell, reg.KSeq(t, reg.Var("DotVar_"+string(d.ComputationCell), reg.Sorts.K)))}
	}

	for {
		if len(cells) == 1 && cells[0].Label() == d.RootCell {
			return cells[0], nil
		}
		deepest, depth := -1, -1
		for i, c := range cells {
			dep, err := d.depth(c.Label())
			if err != nil {
				return nil, err
			}
			if dep > depth {
				deepest, depth = i, dep
			}
		}
		if depth == 0 {
			return nil, fmt.Errorf("several root cells in %v", t)
		}
		parent := d.cells[cells[deepest].Label()].Parent
		var siblings, rest []*term.Cell
		for _, c := range cells {
			if d.cells[c.Label()].Parent == parent {
				siblings = append(siblings, c)
			} else {
				rest = append(rest, c)
			}
		}
		parts := make([]term.Term, 0, len(siblings)+1)
		for _, c := range siblings {
			parts = append(parts, c)
		}
		parts = append(parts, reg.Var("DotVar_"+string(parent), reg.Sorts.Bag))
		cells = append(rest, reg.Cell(parent, reg.Bag(parts...)))
	}
}

func (d *Definition) depth(label term.CellLabel) (int, error) {
	depth := 0
	for {
		info, ok := d.cells[label]
		if !ok {
			return 0, fmt.Errorf("undeclared cell <%s>", label)
		}
		if info.Parent == "" {
			return depth, nil
		}
		label = info.Parent
		depth++
	}
}
