package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pdewitt/citelens/citation"
)

// MarkdownParser handles .md files. Pipe tables are extracted into the
// Table model, indexed in document order, so the table highlight renderer
// can address them by tableIndex/row/column. Everything else becomes
// paragraph blocks with character offsets.
type MarkdownParser struct{}

func (p *MarkdownParser) SupportedFormats() []string { return []string{"md", "markdown"} }

func (p *MarkdownParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown file: %w", err)
	}

	text := string(data)
	blocks, tables := markdownBlocks(text)
	return &ParseResult{
		Blocks: blocks,
		Tables: tables,
		Text:   text,
		Method: "native",
	}, nil
}

// markdownBlocks walks the document line by line, collecting pipe tables
// and paragraph runs. Offsets refer to the original text.
func markdownBlocks(text string) ([]Block, []Table) {
	lines := strings.Split(text, "\n")

	var blocks []Block
	var tables []Table

	offset := 0
	i := 0
	for i < len(lines) {
		line := lines[i]

		if isTableLine(line) && i+1 < len(lines) && isSeparatorLine(lines[i+1]) {
			start := offset
			header := splitTableRow(line)

			// Skip header and separator.
			offset += len(lines[i]) + 1
			offset += len(lines[i+1]) + 1
			i += 2

			var rows [][]string
			rawStart := i
			for i < len(lines) && isTableLine(lines[i]) {
				rows = append(rows, splitTableRow(lines[i]))
				offset += len(lines[i]) + 1
				i++
			}

			idx := len(tables)
			tables = append(tables, Table{Index: idx, Header: header, Rows: rows})

			end := offset - 1
			if i >= len(lines) {
				end = len(text)
			}
			endRow := len(rows) - 1
			if endRow < 0 {
				endRow = 0
			}
			blocks = append(blocks, Block{
				Content: strings.Join(lines[rawStart-2:i], "\n"),
				Type:    "Table",
				Start:   start,
				End:     end,
				Region:  &citation.TableRegion{TableIndex: idx, StartRow: 0, EndRow: endRow},
			})
			continue
		}

		if strings.TrimSpace(line) == "" {
			offset += len(line) + 1
			i++
			continue
		}

		// Paragraph run: consecutive non-blank, non-table lines.
		start := offset
		first := i
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" && !isTableLine(lines[i]) {
			offset += len(lines[i]) + 1
			i++
		}
		end := offset - 1
		if i >= len(lines) {
			end = len(text)
		}
		blocks = append(blocks, Block{
			Content: strings.Join(lines[first:i], "\n"),
			Type:    blockTypeFor(lines[first]),
			Start:   start,
			End:     end,
		})
	}

	return blocks, tables
}

func blockTypeFor(firstLine string) string {
	if strings.HasPrefix(strings.TrimSpace(firstLine), "#") {
		return "Section Header"
	}
	return "Text"
}

func isTableLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

// isSeparatorLine matches the |---|---| row under a table header.
func isSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !isTableLine(trimmed) {
		return false
	}
	for _, cell := range splitTableRow(trimmed) {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if strings.Trim(cell, ":-") != "" {
			return false
		}
	}
	return true
}

func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}
