// Package citation defines the citation data model shared by the resolver,
// the store, and the viewer. A Citation is a tagged union over document
// kinds: exactly one of the location structs is set, selected by Type.
package citation

// Kind discriminates citation variants by document kind.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindText     Kind = "text"
	KindMarkdown Kind = "md"
)

// SourceKind classifies a source document.
type SourceKind string

const (
	SourcePDF      SourceKind = "pdf"
	SourceText     SourceKind = "text"
	SourceCSV      SourceKind = "csv"
	SourceMarkdown SourceKind = "md"
)

// BBox is a page-normalized rectangle. All values are in [0,1] relative
// to the page dimensions.
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PDFLocation anchors a citation to a region of a PDF page. Page is 1-based.
type PDFLocation struct {
	Page int  `json:"page"`
	BBox BBox `json:"bbox"`
}

// TextLocation anchors a citation to a half-open character range
// [StartOffset, EndOffset) of a flat text document.
type TextLocation struct {
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Snippet     string `json:"snippet"`
}

// TableRegion addresses a rectangular region of a rendered markdown table.
// Rows and columns are 0-based and inclusive on both ends. StartCol/EndCol
// are nil when the region covers full rows.
type TableRegion struct {
	TableIndex int  `json:"tableIndex"`
	StartRow   int  `json:"startRow"`
	EndRow     int  `json:"endRow"`
	StartCol   *int `json:"startCol,omitempty"`
	EndCol     *int `json:"endCol,omitempty"`
}

// MarkdownLocation anchors a citation within a markdown document, either by
// an explicit table region or, when Region is nil, by the first textual
// occurrence of Snippet.
type MarkdownLocation struct {
	Snippet string       `json:"snippet"`
	Region  *TableRegion `json:"-"`
}

// Citation links an extracted value to a region of a source document.
// Exactly one of PDF, Text, Markdown is non-nil, matching Type.
type Citation struct {
	Type     Kind   `json:"type"`
	SourceID string `json:"sourceId"`

	PDF      *PDFLocation      `json:"-"`
	Text     *TextLocation     `json:"-"`
	Markdown *MarkdownLocation `json:"-"`
}

// Source describes one source document of an extraction run. Immutable
// once constructed; identity is ID.
type Source struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	File          string     `json:"file"`
	Kind          SourceKind `json:"type"`
	PageCount     int        `json:"pageCount,omitempty"`
	SecondaryFile string     `json:"secondaryFile,omitempty"`
}

// ExtractedField is one extracted value with its supporting citations.
// Citations are ordered by resolution priority; duplicates are permitted.
type ExtractedField struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Value     string     `json:"value"`
	Citations []Citation `json:"citations"`
	Category  string     `json:"category,omitempty"`
}

// NewPDF builds a pdf citation.
func NewPDF(sourceID string, page int, bbox BBox) Citation {
	return Citation{Type: KindPDF, SourceID: sourceID, PDF: &PDFLocation{Page: page, BBox: bbox}}
}

// NewText builds a text citation over [start, end).
func NewText(sourceID string, start, end int, snippet string) Citation {
	return Citation{Type: KindText, SourceID: sourceID, Text: &TextLocation{StartOffset: start, EndOffset: end, Snippet: snippet}}
}

// NewMarkdownSnippet builds a markdown citation located by snippet search.
func NewMarkdownSnippet(sourceID, snippet string) Citation {
	return Citation{Type: KindMarkdown, SourceID: sourceID, Markdown: &MarkdownLocation{Snippet: snippet}}
}

// NewMarkdownRegion builds a markdown citation with an explicit table region.
func NewMarkdownRegion(sourceID, snippet string, region TableRegion) Citation {
	return Citation{Type: KindMarkdown, SourceID: sourceID, Markdown: &MarkdownLocation{Snippet: snippet, Region: &region}}
}
