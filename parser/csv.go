package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/pdewitt/citelens/citation"
)

// CSVParser handles .csv files. The file becomes a single table (index 0)
// rendered to markdown, with one block per data row so row-level snippets
// resolve to a tight region.
type CSVParser struct{}

func (p *CSVParser) SupportedFormats() []string { return []string{"csv"} }

func (p *CSVParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no data found in CSV")
	}

	header := records[0]
	rows := records[1:]
	table := Table{Index: 0, Header: header, Rows: rows}

	var text strings.Builder
	text.WriteString(markdownRow(header))
	text.WriteString(markdownSeparator(len(header)))

	blocks := make([]Block, 0, len(rows))
	for i, row := range rows {
		rendered := markdownRow(row)
		text.WriteString(rendered)
		blocks = append(blocks, Block{
			Content: strings.TrimRight(rendered, "\n"),
			Type:    "Table",
			Region:  &citation.TableRegion{TableIndex: 0, StartRow: i, EndRow: i},
		})
	}

	return &ParseResult{
		Blocks: blocks,
		Tables: []Table{table},
		Text:   text.String(),
		Method: "native",
	}, nil
}

func markdownRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |\n"
}

func markdownSeparator(n int) string {
	if n == 0 {
		return ""
	}
	return "|" + strings.Repeat(" --- |", n) + "\n"
}
