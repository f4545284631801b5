package term

import (
	"cmp"
	"slices"

	"github.com/cottand/ksym/kerr"
)

type CellLabel string

// Multiplicity of a cell label inside its parent. The zero value is One.
type Multiplicity uint8

const (
	One Multiplicity = iota
	Optional
	Star
)

func (m Multiplicity) String() string {
	switch m {
	case Optional:
		return "?"
	case Star:
		return "*"
	default:
		return "1"
	}
}

type Cell struct {
	label       CellLabel
	content     Term
	sort        *Sort
	hash        uint64
	hasFunction bool
}

func (r *Registry) Cell(label CellLabel, content Term) *Cell {
	return &Cell{
		label:       label,
		content:     content,
		sort:        r.Sorts.Cell,
		hash:        hashCombine(hashString("<"+string(label)+">"), content.Hash()),
		hasFunction: content.HasFunction(),
	}
}

func (c *Cell) Label() CellLabel  { return c.label }
func (c *Cell) Content() Term     { return c.content }
func (c *Cell) Sort() *Sort       { return c.sort }
func (c *Cell) Kind() Kind        { return KindCell }
func (c *Cell) IsExactSort() bool { return true }
func (c *Cell) IsGround() bool    { return c.content.IsGround() }
func (c *Cell) HasCell() bool     { return true }
func (c *Cell) HasFunction() bool { return c.hasFunction }
func (c *Cell) Hash() uint64      { return c.hash }
func (*Cell) isTerm()             {}

// CellCollection is a multiset of cells ordered by label, plus frames
// standing for the unspecified remainder
type CellCollection struct {
	cells       []*Cell
	frames      []Variable
	sort        *Sort
	hash        uint64
	ground      bool
	hasFunction bool
	star        bool
}

// Bag builds the canonical collection of cells, collections and Bag-sorted
// variables. An empty collection is .Bag and a lone frame is the frame itself.
// It panics when a label of multiplicity One or Optional occurs twice, or when
// more than one frame is present and no label has multiplicity Star.
func (r *Registry) Bag(parts ...Term) Term {
	var cells []*Cell
	var frames []Variable
	for _, part := range parts {
		switch part := part.(type) {
		case *Cell:
			cells = append(cells, part)
		case *CellCollection:
			cells = append(cells, part.cells...)
			frames = append(frames, part.frames...)
		case Variable:
			if part.Kind() != KindCellCollection && part.Kind() != KindCell {
				kerr.Invariant("variable %v of sort %v in a cell collection", part, part.sort)
			}
			frames = append(frames, part)
		default:
			kerr.Invariant("%v is not a cell", part)
		}
	}
	if len(cells) == 0 && len(frames) == 0 {
		return r.emptyBag
	}
	if len(cells) == 0 && len(frames) == 1 {
		return frames[0]
	}
	return r.newCellCollection(cells, frames)
}

func (r *Registry) newCellCollection(cells []*Cell, frames []Variable) *CellCollection {
	cells = slices.Clone(cells)
	slices.SortStableFunc(cells, compareCells)
	frames = slices.Clone(frames)
	slices.SortFunc(frames, func(a, b Variable) int { return cmp.Compare(a.name, b.name) })

	c := &CellCollection{cells: cells, frames: frames, sort: r.Sorts.Bag, ground: len(frames) == 0}
	c.hash = hashString("#Bag")
	for i, cell := range cells {
		m := r.Multiplicity(cell.label)
		if m == Star {
			c.star = true
		} else if i > 0 && cells[i-1].label == cell.label {
			kerr.Invariant("cell <%s> of multiplicity %v occurs more than once", cell.label, m)
		}
		c.hash = hashCombine(c.hash, cell.hash)
		c.ground = c.ground && cell.IsGround()
		c.hasFunction = c.hasFunction || cell.hasFunction
	}
	if len(frames) > 1 && !c.star {
		kerr.Invariant("cell collection with frames %v has no cell of multiplicity *", frames)
	}
	for _, f := range frames {
		c.hash = hashCombine(c.hash, f.Hash())
	}
	return c
}

func compareCells(a, b *Cell) int {
	if c := cmp.Compare(a.label, b.label); c != 0 {
		return c
	}
	return cmp.Compare(a.hash, b.hash)
}

// EmptyBag is .Bag
func (r *Registry) EmptyBag() *CellCollection { return r.emptyBag }

func (c *CellCollection) Cells() []*Cell     { return c.cells }
func (c *CellCollection) Frames() []Variable { return c.frames }
func (c *CellCollection) Sort() *Sort        { return c.sort }
func (c *CellCollection) Kind() Kind         { return KindCellCollection }
func (c *CellCollection) IsExactSort() bool  { return true }
func (c *CellCollection) IsGround() bool     { return c.ground }
func (c *CellCollection) HasCell() bool      { return len(c.cells) > 0 }
func (c *CellCollection) HasFunction() bool  { return c.hasFunction }
func (c *CellCollection) Hash() uint64       { return c.hash }
func (c *CellCollection) HasStar() bool      { return c.star }
func (c *CellCollection) IsConcrete() bool   { return len(c.frames) == 0 }
func (*CellCollection) isTerm()               {}

// CellsOf returns the cells labelled label, in canonical order
func (c *CellCollection) CellsOf(label CellLabel) []*Cell {
	start, found := slices.BinarySearchFunc(c.cells, label, func(cell *Cell, l CellLabel) int {
		return cmp.Compare(cell.label, l)
	})
	if !found {
		return nil
	}
	end := start
	for end < len(c.cells) && c.cells[end].label == label {
		end++
	}
	return c.cells[start:end]
}

// Labels returns the distinct cell labels of c in order
func (c *CellCollection) Labels() []CellLabel {
	var labels []CellLabel
	for _, cell := range c.cells {
		if len(labels) == 0 || labels[len(labels)-1] != cell.label {
			labels = append(labels, cell.label)
		}
	}
	return labels
}
