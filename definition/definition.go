// Package definition holds a compiled language definition: its registry,
// its configuration structure and its rules.
package definition

import (
	"fmt"
	"slices"

	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
)

// Stream marks a cell whose content is an I/O buffer
type Stream uint8

const (
	NoStream Stream = iota
	Stdin
	Stdout
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "none"
	}
}

// IsOutput is true for stdout and stderr
func (s Stream) IsOutput() bool { return s == Stdout || s == Stderr }

type CellInfo struct {
	Label        term.CellLabel
	Sort         *term.Sort
	Multiplicity term.Multiplicity
	Stream       Stream
	Indexed      bool
	Parent       term.CellLabel
}

const DefaultComputationCell term.CellLabel = "k"

type Definition struct {
	Registry *term.Registry

	rules         []*Rule
	functionRules map[*term.KLabel][]*Rule
	cells         map[term.CellLabel]*CellInfo
	cellOrder     []term.CellLabel

	ComputationCell term.CellLabel
	RootCell        term.CellLabel
}

func New(reg *term.Registry) *Definition {
	return &Definition{
		Registry:        reg,
		functionRules:   make(map[*term.KLabel][]*Rule),
		cells:           make(map[term.CellLabel]*CellInfo),
		ComputationCell: DefaultComputationCell,
	}
}

// DeclareCell adds a cell to the configuration structure. The first cell
// without parent becomes the root.
func (d *Definition) DeclareCell(info CellInfo) error {
	if _, ok := d.cells[info.Label]; ok {
		return kerr.New(&kerr.DefinitionLoadError{Where: "cell " + string(info.Label), Message: "declared twice"})
	}
	if info.Parent != "" {
		if _, ok := d.cells[info.Parent]; !ok {
			return kerr.New(&kerr.DefinitionLoadError{
				Where:   "cell " + string(info.Label),
				Message: fmt.Sprintf("parent <%s> must be declared first", info.Parent),
			})
		}
	} else if d.RootCell == "" {
		d.RootCell = info.Label
	}
	if info.Sort == nil {
		info.Sort = d.Registry.Sorts.K
	}
	d.cells[info.Label] = &info
	d.cellOrder = append(d.cellOrder, info.Label)
	d.Registry.DeclareCell(info.Label, info.Multiplicity)
	return nil
}

func (d *Definition) Cell(label term.CellLabel) (*CellInfo, bool) {
	c, ok := d.cells[label]
	return c, ok
}

// Cells returns the declared cells in declaration order
func (d *Definition) Cells() []*CellInfo {
	cells := make([]*CellInfo, len(d.cellOrder))
	for i, l := range d.cellOrder {
		cells[i] = d.cells[l]
	}
	return cells
}

// IndexedCells are the computation cell and every cell flagged as indexed
func (d *Definition) IndexedCells() []term.CellLabel {
	indexed := []term.CellLabel{d.ComputationCell}
	for _, l := range d.cellOrder {
		if d.cells[l].Indexed && l != d.ComputationCell {
			indexed = append(indexed, l)
		}
	}
	return indexed
}

// StreamCells returns the cells holding I/O buffers
func (d *Definition) StreamCells() []*CellInfo {
	var streams []*CellInfo
	for _, l := range d.cellOrder {
		if d.cells[l].Stream != NoStream {
			streams = append(streams, d.cells[l])
		}
	}
	return streams
}

// CellSort is the sort of the content of label, nil for undeclared cells
func (d *Definition) CellSort(label term.CellLabel) *term.Sort {
	if c, ok := d.cells[label]; ok {
		return c.Sort
	}
	return nil
}

// AddRule numbers r and files it as a rewrite or a function rule
func (d *Definition) AddRule(r *Rule) {
	r.Ordinal = len(d.rules)
	r.lookupCount = d.lookupCount(r)
	d.rules = append(d.rules, r)
	if head := r.FunctionLabel(); head != nil {
		rules := append(d.functionRules[head], r)
		// owise rules are tried last
		slices.SortStableFunc(rules, func(a, b *Rule) int {
			switch {
			case a.Attributes.Owise == b.Attributes.Owise:
				return 0
			case a.Attributes.Owise:
				return 1
			default:
				return -1
			}
		})
		d.functionRules[head] = rules
	}
}

// Rules returns every rule, in ordinal order
func (d *Definition) Rules() []*Rule { return d.rules }

// RewriteRules returns the rules that are not function rules
func (d *Definition) RewriteRules() []*Rule {
	var rules []*Rule
	for _, r := range d.rules {
		if r.FunctionLabel() == nil {
			rules = append(rules, r)
		}
	}
	return rules
}

// FunctionRules are the rules defining label, non-owise rules first
func (d *Definition) FunctionRules(label *term.KLabel) []*Rule {
	return d.functionRules[label]
}

func (d *Definition) IsFunctionRule(r *Rule) bool {
	return r.FunctionLabel() != nil
}

// RuleByLabel finds a rule by its label
func (d *Definition) RuleByLabel(label string) (*Rule, bool) {
	for _, r := range d.rules {
		if r.Label == label {
			return r, true
		}
	}
	return nil, false
}

// lookupCount is the number of buffered elements a rule needs: the elements
// its stream cells name explicitly plus its list lookups
func (d *Definition) lookupCount(r *Rule) int {
	count := 0
	for _, stream := range d.StreamCells() {
		for _, cell := range term.FindCells(r.LHS, stream.Label) {
			if l, ok := cell.Content().(*term.BuiltinList); ok {
				count += len(l.Elements())
			}
		}
	}
	for _, l := range r.Lookups {
		if l.Kind == ListLookup {
			count++
		}
	}
	return count
}
