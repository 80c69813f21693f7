package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser handles plain text (.txt) files. Blocks are paragraphs split
// on blank lines, each carrying its character offsets into the flat text.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	text := string(data)
	return &ParseResult{
		Blocks: textBlocks(text),
		Text:   text,
		Method: "native",
	}, nil
}

// textBlocks splits flat text into paragraph blocks with offsets.
func textBlocks(text string) []Block {
	var blocks []Block
	start := 0
	for start < len(text) {
		end := strings.Index(text[start:], "\n\n")
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}

		para := text[start:end]
		if strings.TrimSpace(para) != "" {
			blocks = append(blocks, Block{
				Content: para,
				Type:    "Text",
				Start:   start,
				End:     end,
			})
		}

		start = end
		for start < len(text) && (text[start] == '\n' || text[start] == '\r') {
			start++
		}
	}
	return blocks
}
