package citation

import "testing"

func intp(v int) *int { return &v }

func TestMatchesPDF(t *testing.T) {
	base := NewPDF("doc-1", 3, BBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05})

	tests := []struct {
		name   string
		active Citation
		want   bool
	}{
		{
			name:   "identical",
			active: NewPDF("doc-1", 3, BBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05}),
			want:   true,
		},
		{
			name:   "different width and height still match",
			active: NewPDF("doc-1", 3, BBox{Left: 0.1, Top: 0.2, Width: 0.9, Height: 0.2}),
			want:   true,
		},
		{
			name:   "different top",
			active: NewPDF("doc-1", 3, BBox{Left: 0.1, Top: 0.25, Width: 0.5, Height: 0.05}),
			want:   false,
		},
		{
			name:   "different page",
			active: NewPDF("doc-1", 4, BBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05}),
			want:   false,
		},
		{
			name:   "different source",
			active: NewPDF("doc-2", 3, BBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05}),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(base, ActiveKey(tt.active)); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesText(t *testing.T) {
	base := NewText("doc-1", 10, 25, "some snippet")

	if !Matches(base, ActiveKey(NewText("doc-1", 10, 25, "different snippet text"))) {
		t.Error("text citations with equal offsets should match regardless of snippet")
	}
	if Matches(base, ActiveKey(NewText("doc-1", 10, 26, "some snippet"))) {
		t.Error("text citations with different end offsets should not match")
	}
	if Matches(base, ActiveKey(NewText("doc-2", 10, 25, "some snippet"))) {
		t.Error("text citations with different sources should not match")
	}
}

func TestMatchesMarkdown(t *testing.T) {
	region := TableRegion{TableIndex: 0, StartRow: 2, EndRow: 2}
	base := NewMarkdownRegion("doc-1", "row text", region)

	tests := []struct {
		name   string
		active Citation
		want   bool
	}{
		{
			name:   "same region",
			active: NewMarkdownRegion("doc-1", "other snippet", region),
			want:   true,
		},
		{
			name:   "different row",
			active: NewMarkdownRegion("doc-1", "row text", TableRegion{TableIndex: 0, StartRow: 3, EndRow: 3}),
			want:   false,
		},
		{
			name:   "column range vs full rows",
			active: NewMarkdownRegion("doc-1", "row text", TableRegion{TableIndex: 0, StartRow: 2, EndRow: 2, StartCol: intp(1), EndCol: intp(1)}),
			want:   false,
		},
		{
			name:   "region vs snippet",
			active: NewMarkdownSnippet("doc-1", "row text"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(base, ActiveKey(tt.active)); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}

	snip := NewMarkdownSnippet("doc-1", "04/10/2025")
	if !Matches(snip, ActiveKey(NewMarkdownSnippet("doc-1", "04/10/2025"))) {
		t.Error("snippet citations with equal snippets should match")
	}
	if Matches(snip, ActiveKey(NewMarkdownSnippet("doc-1", "04/11/2025"))) {
		t.Error("snippet citations with different snippets should not match")
	}
}

func TestMatchesAcrossKinds(t *testing.T) {
	pdf := NewPDF("doc-1", 1, BBox{})
	text := NewText("doc-1", 0, 10, "x")
	md := NewMarkdownSnippet("doc-1", "x")

	pairs := []struct {
		name string
		c    Citation
		a    Citation
	}{
		{"pdf vs text", pdf, text},
		{"pdf vs md", pdf, md},
		{"text vs md", text, md},
		{"text vs pdf", text, pdf},
		{"md vs pdf", md, pdf},
		{"md vs text", md, text},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			if Matches(tt.c, ActiveKey(tt.a)) {
				t.Error("citations of different kinds must never match")
			}
		})
	}
}
