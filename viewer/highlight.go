package viewer

import (
	"strings"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
)

// HighlightPadding is the pixel margin drawn around a pdf highlight box.
const HighlightPadding = 4.0

// PixelRect is a highlight rectangle in rendered-page pixels.
type PixelRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PDFHighlight converts the active citation's normalized bbox into a
// pixel rectangle for the currently rendered page. It returns false when
// there is nothing to draw: no active pdf citation, or the citation
// belongs to a different page than the one displayed.
func PDFHighlight(a *citation.Active, displayedPage int, pageWidth, pageHeight float64) (PixelRect, bool) {
	if a == nil || a.Type != citation.KindPDF || a.PDF == nil {
		return PixelRect{}, false
	}
	if a.PDF.Page != displayedPage {
		return PixelRect{}, false
	}

	b := a.PDF.BBox
	return PixelRect{
		Left:   b.Left*pageWidth - HighlightPadding,
		Top:    b.Top*pageHeight - HighlightPadding,
		Width:  b.Width*pageWidth + 2*HighlightPadding,
		Height: b.Height*pageHeight + 2*HighlightPadding,
	}, true
}

// TextSlices is a flat text document split around the highlighted range.
type TextSlices struct {
	Before      string
	Highlighted string
	After       string
}

// SliceText splits the document text into before/highlighted/after using
// the active citation's [StartOffset, EndOffset) range. Out-of-range
// offsets clamp silently to the document bounds; a fully out-of-range
// citation yields an empty highlighted slice rather than an error. The
// second return is false when the active citation is not a text citation.
func SliceText(text string, a *citation.Active) (TextSlices, bool) {
	if a == nil || a.Type != citation.KindText || a.Text == nil {
		return TextSlices{Before: text}, false
	}

	start := clampOffset(a.Text.StartOffset, len(text))
	end := clampOffset(a.Text.EndOffset, len(text))
	if end < start {
		end = start
	}

	return TextSlices{
		Before:      text[:start],
		Highlighted: text[start:end],
		After:       text[end:],
	}, true
}

func clampOffset(v, length int) int {
	if v < 0 {
		return 0
	}
	if v > length {
		return length
	}
	return v
}

// TableHighlight addresses the highlighted region of a rendered table.
// Rows and columns are inclusive; FullRows means every cell of each row
// in the range is highlighted. The scroll anchor is the first highlighted
// row (and column, when column-scoped).
type TableHighlight struct {
	TableIndex int
	StartRow   int
	EndRow     int
	StartCol   int
	EndCol     int
	FullRows   bool
}

// Span is a character range within the rendered document text.
type Span struct {
	Start int
	End   int
}

// MarkdownHighlight resolves the active markdown citation against the
// rendered document. A region citation addresses a table by index with a
// row range and optional column range; a snippet-only citation locates
// the first textual occurrence of the snippet instead. Exactly one of the
// returns is non-nil when ok.
func MarkdownHighlight(a *citation.Active, tables []parser.Table, text string) (*TableHighlight, *Span, bool) {
	if a == nil || a.Type != citation.KindMarkdown || a.Markdown == nil {
		return nil, nil, false
	}

	if r := a.Markdown.Region; r != nil {
		if r.TableIndex < 0 || r.TableIndex >= len(tables) {
			return nil, nil, false
		}
		table := tables[r.TableIndex]
		if len(table.Rows) == 0 {
			return nil, nil, false
		}

		h := &TableHighlight{
			TableIndex: r.TableIndex,
			StartRow:   clampIndex(r.StartRow, len(table.Rows)),
			EndRow:     clampIndex(r.EndRow, len(table.Rows)),
			FullRows:   r.StartCol == nil,
		}
		if h.EndRow < h.StartRow {
			h.EndRow = h.StartRow
		}
		if r.StartCol != nil {
			width := tableWidth(table)
			h.StartCol = clampIndex(*r.StartCol, width)
			h.EndCol = h.StartCol
			if r.EndCol != nil {
				h.EndCol = clampIndex(*r.EndCol, width)
			}
			if h.EndCol < h.StartCol {
				h.EndCol = h.StartCol
			}
		}
		return h, nil, true
	}

	snippet := strings.TrimSpace(a.Markdown.Snippet)
	if snippet == "" {
		return nil, nil, false
	}
	idx := strings.Index(strings.ToLower(text), strings.ToLower(snippet))
	if idx < 0 {
		return nil, nil, false
	}
	return nil, &Span{Start: idx, End: idx + len(snippet)}, true
}

func clampIndex(v, length int) int {
	if v < 0 {
		return 0
	}
	if v >= length {
		return length - 1
	}
	return v
}

func tableWidth(t parser.Table) int {
	width := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		width = 1
	}
	return width
}
