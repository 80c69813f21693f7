package citation

import "encoding/json"

// wireCitation is the flat persisted shape of a citation. Legacy payloads
// predate the type tag and carry the pdf fields at the top level, so every
// location field is optional here and presence is detected via pointers.
type wireCitation struct {
	Type     string `json:"type,omitempty"`
	SourceID string `json:"sourceId"`

	// pdf
	Page *int  `json:"page,omitempty"`
	BBox *BBox `json:"bbox,omitempty"`

	// text
	StartOffset *int `json:"startOffset,omitempty"`
	EndOffset   *int `json:"endOffset,omitempty"`

	// text + md
	Snippet string `json:"snippet,omitempty"`

	// md table region
	TableIndex *int `json:"tableIndex,omitempty"`
	StartRow   *int `json:"startRow,omitempty"`
	EndRow     *int `json:"endRow,omitempty"`
	StartCol   *int `json:"startCol,omitempty"`
	EndCol     *int `json:"endCol,omitempty"`
}

// Normalize converts an untyped persisted record into a tagged Citation.
// It never fails: records tagged "text" or "md" pass through, anything
// else is assumed to be the legacy flat pdf shape and a pdf citation is
// synthesized from whatever fields are present. Normalizing an already
// normalized record is a no-op.
func Normalize(raw json.RawMessage) Citation {
	var w wireCitation
	// Malformed input degrades to a zero-valued pdf citation rather than
	// an error, preserving read-compatibility with older payloads.
	_ = json.Unmarshal(raw, &w)
	return w.citation()
}

func (w wireCitation) citation() Citation {
	switch Kind(w.Type) {
	case KindText:
		loc := &TextLocation{Snippet: w.Snippet}
		if w.StartOffset != nil {
			loc.StartOffset = *w.StartOffset
		}
		if w.EndOffset != nil {
			loc.EndOffset = *w.EndOffset
		}
		return Citation{Type: KindText, SourceID: w.SourceID, Text: loc}
	case KindMarkdown:
		loc := &MarkdownLocation{Snippet: w.Snippet}
		if w.TableIndex != nil {
			r := &TableRegion{TableIndex: *w.TableIndex}
			if w.StartRow != nil {
				r.StartRow = *w.StartRow
			}
			r.EndRow = r.StartRow
			if w.EndRow != nil {
				r.EndRow = *w.EndRow
			}
			r.StartCol = w.StartCol
			r.EndCol = w.EndCol
			if r.StartCol != nil && r.EndCol == nil {
				end := *r.StartCol
				r.EndCol = &end
			}
			loc.Region = r
		}
		return Citation{Type: KindMarkdown, SourceID: w.SourceID, Markdown: loc}
	default:
		// Legacy untagged records are pdf citations with flat fields.
		loc := &PDFLocation{Page: 1}
		if w.Page != nil {
			loc.Page = *w.Page
		}
		if w.BBox != nil {
			loc.BBox = *w.BBox
		}
		return Citation{Type: KindPDF, SourceID: w.SourceID, PDF: loc}
	}
}

// MarshalJSON writes the flat wire shape, always including the type tag.
func (c Citation) MarshalJSON() ([]byte, error) {
	w := wireCitation{Type: string(c.Type), SourceID: c.SourceID}
	switch c.Type {
	case KindPDF:
		if c.PDF != nil {
			page, bbox := c.PDF.Page, c.PDF.BBox
			w.Page, w.BBox = &page, &bbox
		}
	case KindText:
		if c.Text != nil {
			start, end := c.Text.StartOffset, c.Text.EndOffset
			w.StartOffset, w.EndOffset = &start, &end
			w.Snippet = c.Text.Snippet
		}
	case KindMarkdown:
		if c.Markdown != nil {
			w.Snippet = c.Markdown.Snippet
			if r := c.Markdown.Region; r != nil {
				idx, sr, er := r.TableIndex, r.StartRow, r.EndRow
				w.TableIndex, w.StartRow, w.EndRow = &idx, &sr, &er
				w.StartCol, w.EndCol = r.StartCol, r.EndCol
			}
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts both tagged and legacy untagged records.
func (c *Citation) UnmarshalJSON(data []byte) error {
	var w wireCitation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = w.citation()
	return nil
}

// NormalizeSource fills in defaults on a decoded source record. Legacy
// records lack the type tag; those are pdf sources.
func NormalizeSource(s Source) Source {
	if s.Kind == "" {
		s.Kind = SourcePDF
	}
	return s
}
