package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdewitt/citelens/citation"
)

// PDFParser extracts text blocks with page-normalized bounding boxes from
// PDFs using native text extraction. Positioned glyph runs are grouped
// into rows by baseline, rows into blocks by vertical proximity, and each
// block's box is normalized against the page media box. The remote parse
// service produces better blocks when configured; this parser is the
// offline fallback.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var blocks []Block
	var text strings.Builder

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		w, h := pageSize(page)
		pageBlocks := blocksFromRows(groupRows(page.Content().Text), i, w, h)
		for _, b := range pageBlocks {
			text.WriteString(b.Content)
			text.WriteString("\n\n")
		}
		blocks = append(blocks, pageBlocks...)
	}

	return &ParseResult{
		Blocks:    blocks,
		Text:      text.String(),
		PageCount: totalPages,
		Method:    "native",
	}, nil
}

// pageSize reads the media box, falling back to US Letter dimensions.
func pageSize(page pdf.Page) (float64, float64) {
	mb := page.V.Key("MediaBox")
	if mb.Kind() == pdf.Array && mb.Len() == 4 {
		x0, y0 := mb.Index(0).Float64(), mb.Index(1).Float64()
		x1, y1 := mb.Index(2).Float64(), mb.Index(3).Float64()
		if x1 > x0 && y1 > y0 {
			return x1 - x0, y1 - y0
		}
	}
	return 612, 792
}

// row is a baseline-grouped run of positioned text.
type row struct {
	y        float64
	fontSize float64
	minX     float64
	maxX     float64
	text     strings.Builder
}

// groupRows buckets glyph runs into rows by baseline Y. Runs within half
// a font size of an existing row's baseline join that row.
func groupRows(texts []pdf.Text) []*row {
	var rows []*row
	for _, t := range texts {
		if t.S == "" {
			continue
		}

		var r *row
		for _, cand := range rows {
			tol := cand.fontSize / 2
			if tol < 2 {
				tol = 2
			}
			if t.Y >= cand.y-tol && t.Y <= cand.y+tol {
				r = cand
				break
			}
		}
		if r == nil {
			r = &row{y: t.Y, fontSize: t.FontSize, minX: t.X, maxX: t.X + t.W}
			rows = append(rows, r)
		}

		if t.X < r.minX {
			r.minX = t.X
		}
		if t.X+t.W > r.maxX {
			r.maxX = t.X + t.W
		}
		if t.FontSize > r.fontSize {
			r.fontSize = t.FontSize
		}
		r.text.WriteString(t.S)
	}

	// Reading order: top of page first. PDF Y grows upward.
	sort.Slice(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	return rows
}

// blocksFromRows merges vertically adjacent rows into blocks and computes
// each block's page-normalized bounding box.
func blocksFromRows(rows []*row, page int, pageW, pageH float64) []Block {
	var blocks []Block

	flush := func(group []*row) {
		if len(group) == 0 {
			return
		}
		var lines []string
		minX, maxX := group[0].minX, group[0].maxX
		topY := group[0].y + group[0].fontSize
		botY := group[len(group)-1].y
		for _, r := range group {
			line := strings.TrimSpace(r.text.String())
			if line != "" {
				lines = append(lines, line)
			}
			if r.minX < minX {
				minX = r.minX
			}
			if r.maxX > maxX {
				maxX = r.maxX
			}
		}
		if len(lines) == 0 {
			return
		}
		bbox := &citation.BBox{
			Left:   clamp01(minX / pageW),
			Top:    clamp01((pageH - topY) / pageH),
			Width:  clamp01((maxX - minX) / pageW),
			Height: clamp01((topY - botY) / pageH),
		}
		blocks = append(blocks, Block{
			Content: strings.Join(lines, "\n"),
			Type:    "Text",
			Page:    page,
			BBox:    bbox,
		})
	}

	var group []*row
	for _, r := range rows {
		if len(group) > 0 {
			prev := group[len(group)-1]
			gap := prev.y - r.y
			limit := prev.fontSize * 1.6
			if limit < 6 {
				limit = 6
			}
			if gap > limit {
				flush(group)
				group = nil
			}
		}
		group = append(group, r)
	}
	flush(group)

	return blocks
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
