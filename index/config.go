package index

import (
	"math"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/term"
)

// ConfigurationTermIndex is the index of one configuration. It is never
// mutated after Extract returns.
type ConfigurationTermIndex struct {
	cells           map[term.CellLabel][]IndexingPair
	cellOrder       []term.CellLabel
	instream        []IndexingPair
	outstream       []IndexingPair
	maxInputBufLen  int
	maxOutputBufLen int
}

// Extract indexes the indexed cells and the stream cells of configuration
func Extract(def *definition.Definition, configuration term.Term) *ConfigurationTermIndex {
	c := &ConfigurationTermIndex{cells: make(map[term.CellLabel][]IndexingPair)}
	for _, label := range def.IndexedCells() {
		for _, cell := range term.FindCells(configuration, label) {
			if _, seen := c.cells[label]; !seen {
				c.cellOrder = append(c.cellOrder, label)
			}
			c.cells[label] = append(c.cells[label], SequencePair(cell.Content()))
		}
	}
	for _, stream := range def.StreamCells() {
		for _, cell := range term.FindCells(configuration, stream.Label) {
			length := math.MaxInt
			if size, ok := term.ConcreteSize(cell.Content()); ok {
				length = size
			}
			if stream.Stream == definition.Stdin {
				c.instream = append(c.instream, InstreamPair(cell.Content()))
				c.maxInputBufLen = max(c.maxInputBufLen, length)
			} else {
				c.outstream = append(c.outstream, OutstreamPair(cell.Content()))
				c.maxOutputBufLen = max(c.maxOutputBufLen, length)
			}
		}
	}
	return c
}

// Cells returns the indexed cells found, in the order of the definition
func (c *ConfigurationTermIndex) Cells() []term.CellLabel { return c.cellOrder }

func (c *ConfigurationTermIndex) Pairs(label term.CellLabel) []IndexingPair {
	return c.cells[label]
}

func (c *ConfigurationTermIndex) Instream() []IndexingPair  { return c.instream }
func (c *ConfigurationTermIndex) Outstream() []IndexingPair { return c.outstream }

// MaxInputBufLen is the length of the longest input buffer, math.MaxInt when it is not concrete
func (c *ConfigurationTermIndex) MaxInputBufLen() int  { return c.maxInputBufLen }
func (c *ConfigurationTermIndex) MaxOutputBufLen() int { return c.maxOutputBufLen }
