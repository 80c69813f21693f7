package citation

// Active is the comparison key for "is this citation currently highlighted".
// It mirrors the Citation union but drops fields that play no role in
// matching or highlighting: a pdf key keeps only geometry, a text key keeps
// only the offset range.
type Active struct {
	Type     Kind
	SourceID string

	PDF      *ActivePDF
	Text     *ActiveText
	Markdown *ActiveMarkdown
}

// ActivePDF is the pdf variant of an active citation key.
type ActivePDF struct {
	Page int
	BBox BBox
}

// ActiveText is the text variant of an active citation key.
type ActiveText struct {
	StartOffset int
	EndOffset   int
}

// ActiveMarkdown is the markdown variant of an active citation key.
type ActiveMarkdown struct {
	Snippet string
	Region  *TableRegion
}

// ActiveKey derives the active-citation key from a citation.
func ActiveKey(c Citation) Active {
	a := Active{Type: c.Type, SourceID: c.SourceID}
	switch c.Type {
	case KindPDF:
		if c.PDF != nil {
			a.PDF = &ActivePDF{Page: c.PDF.Page, BBox: c.PDF.BBox}
		}
	case KindText:
		if c.Text != nil {
			a.Text = &ActiveText{StartOffset: c.Text.StartOffset, EndOffset: c.Text.EndOffset}
		}
	case KindMarkdown:
		if c.Markdown != nil {
			md := &ActiveMarkdown{Snippet: c.Markdown.Snippet}
			if c.Markdown.Region != nil {
				r := *c.Markdown.Region
				md.Region = &r
			}
			a.Markdown = md
		}
	}
	return a
}

// Matches reports whether a citation and an active key identify the same
// highlight. It is total over every tag combination and has no hidden
// state; citations of different kinds never match.
//
// For pdf citations the bbox width and height are deliberately excluded:
// two citations anchored at the same top-left are the same highlight even
// if re-parsing produced a slightly different box size.
func Matches(c Citation, a Active) bool {
	if c.Type != a.Type || c.SourceID != a.SourceID {
		return false
	}
	switch c.Type {
	case KindPDF:
		if c.PDF == nil || a.PDF == nil {
			return false
		}
		return c.PDF.Page == a.PDF.Page &&
			c.PDF.BBox.Left == a.PDF.BBox.Left &&
			c.PDF.BBox.Top == a.PDF.BBox.Top
	case KindText:
		if c.Text == nil || a.Text == nil {
			return false
		}
		return c.Text.StartOffset == a.Text.StartOffset &&
			c.Text.EndOffset == a.Text.EndOffset
	case KindMarkdown:
		if c.Markdown == nil || a.Markdown == nil {
			return false
		}
		cr, ar := c.Markdown.Region, a.Markdown.Region
		if (cr == nil) != (ar == nil) {
			return false
		}
		if cr != nil {
			return cr.TableIndex == ar.TableIndex &&
				cr.StartRow == ar.StartRow && cr.EndRow == ar.EndRow &&
				intPtrEq(cr.StartCol, ar.StartCol) && intPtrEq(cr.EndCol, ar.EndCol)
		}
		return c.Markdown.Snippet == a.Markdown.Snippet
	}
	return false
}

func intPtrEq(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
