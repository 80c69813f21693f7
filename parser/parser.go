// Package parser turns source documents into the block and table model the
// snippet resolver and the viewer consume. Each format gets its own parser;
// the Registry routes by file extension.
package parser

import (
	"context"
	"strings"

	"github.com/pdewitt/citelens/citation"
)

// Block is one parsed unit of document content with a kind-specific
// location. Blocks are immutable, read-only inputs to citation resolution.
// For paged documents BBox is set; for flat text Start/End hold character
// offsets; for tabular documents Region addresses the table cells the
// block was rendered from.
type Block struct {
	Content string
	Type    string

	Page int
	BBox *citation.BBox

	Start int
	End   int

	Region *citation.TableRegion
}

// Table is a rendered table, indexed in document order.
type Table struct {
	Index  int
	Header []string
	Rows   [][]string
}

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Blocks    []Block
	Tables    []Table
	Text      string // flat rendering of the whole document
	PageCount int
	Method    string // "native" or "remote"
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Block types that are navigational rather than content; they never
// participate in snippet resolution.
var skipTypes = map[string]bool{
	"Page Number": true,
	"Footer":      true,
}

// FilterBlocks drops empty and navigational blocks.
func FilterBlocks(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if skipTypes[b.Type] {
			continue
		}
		if strings.TrimSpace(b.Content) == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}
