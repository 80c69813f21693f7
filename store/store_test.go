//go:build cgo

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) SourceRecord {
	return SourceRecord{
		Source: citation.Source{
			ID:        id,
			Name:      "Test Doc",
			File:      "/docs/" + id + ".pdf",
			Kind:      citation.SourcePDF,
			PageCount: 3,
		},
		ContentHash: "abc123",
	}
}

func sampleDoc() *parser.ParseResult {
	return &parser.ParseResult{
		Blocks: []parser.Block{
			{Content: "The quick brown fox", Type: "Text", Page: 1,
				BBox: &citation.BBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05}},
			{Content: "jumps over the lazy dog", Type: "Text", Page: 2},
		},
		Text:      "The quick brown fox\n\njumps over the lazy dog",
		PageCount: 3,
		Method:    "native",
	}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

func TestSaveAndGetSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSource(ctx, sampleRecord("doc-1"), sampleDoc()); err != nil {
		t.Fatalf("saving source: %v", err)
	}

	got, err := s.GetSource(ctx, "doc-1")
	if err != nil {
		t.Fatalf("getting source: %v", err)
	}
	if got.Name != "Test Doc" {
		t.Errorf("name: got %q, want %q", got.Name, "Test Doc")
	}
	if got.Kind != citation.SourcePDF {
		t.Errorf("kind: got %q, want %q", got.Kind, citation.SourcePDF)
	}
	if got.PageCount != 3 {
		t.Errorf("page count: got %d, want 3", got.PageCount)
	}
	if got.ParseMethod != "native" {
		t.Errorf("parse method: got %q, want %q", got.ParseMethod, "native")
	}
}

func TestSaveSourceReplacesBlocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("doc-1")
	if err := s.SaveSource(ctx, rec, sampleDoc()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	smaller := &parser.ParseResult{
		Blocks:    []parser.Block{{Content: "only block", Page: 1}},
		Text:      "only block",
		PageCount: 1,
	}
	if err := s.SaveSource(ctx, rec, smaller); err != nil {
		t.Fatalf("second save: %v", err)
	}

	blocks, err := s.Blocks(ctx, "doc-1")
	if err != nil {
		t.Fatalf("loading blocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Content != "only block" {
		t.Errorf("blocks = %+v, want single replacement block", blocks)
	}
}

func TestGetSourceNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSource(context.Background(), "missing")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSource(ctx, sampleRecord("doc-1"), sampleDoc()); err != nil {
		t.Fatalf("saving: %v", err)
	}
	if err := s.DeleteSource(ctx, "doc-1"); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	if _, err := s.GetSource(ctx, "doc-1"); err != sql.ErrNoRows {
		t.Fatalf("source should be gone, got err %v", err)
	}
	blocks, err := s.Blocks(ctx, "doc-1")
	if err != nil {
		t.Fatalf("loading blocks: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("blocks should be gone, got %d", len(blocks))
	}

	// FTS index should no longer match the deleted content.
	hits, err := s.SearchBlocks(ctx, "doc-1", "fox", 10)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("search after delete returned %d hits", len(hits))
	}
}

// ---------------------------------------------------------------------------
// Blocks and documents
// ---------------------------------------------------------------------------

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &parser.ParseResult{
		Blocks: []parser.Block{
			{Content: "| a | b |", Type: "Table", Region: &citation.TableRegion{TableIndex: 0, StartRow: 0, EndRow: 1}},
			{Content: "para", Type: "Text", Start: 10, End: 14},
		},
		Tables: []parser.Table{
			{Index: 0, Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"3", "4"}}},
		},
		Text:      "table\n\npara",
		PageCount: 1,
		Method:    "native",
	}

	rec := SourceRecord{Source: citation.Source{ID: "md-1", Name: "Notes", File: "notes.md", Kind: citation.SourceMarkdown}}
	if err := s.SaveSource(ctx, rec, doc); err != nil {
		t.Fatalf("saving: %v", err)
	}

	got, err := s.Document(ctx, "md-1")
	if err != nil {
		t.Fatalf("loading document: %v", err)
	}
	if got.Text != doc.Text || got.PageCount != 1 || got.Method != "native" {
		t.Errorf("document meta = %q/%d/%q", got.Text, got.PageCount, got.Method)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(got.Blocks))
	}
	if got.Blocks[0].Region == nil || got.Blocks[0].Region.EndRow != 1 {
		t.Errorf("region not preserved: %+v", got.Blocks[0].Region)
	}
	if got.Blocks[1].Start != 10 || got.Blocks[1].End != 14 {
		t.Errorf("offsets not preserved: [%d,%d)", got.Blocks[1].Start, got.Blocks[1].End)
	}
	if len(got.Tables) != 1 || len(got.Tables[0].Rows) != 2 {
		t.Fatalf("tables = %+v", got.Tables)
	}
	if got.Tables[0].Rows[1][1] != "4" {
		t.Errorf("cell = %q, want %q", got.Tables[0].Rows[1][1], "4")
	}
}

func TestSourceText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSource(ctx, sampleRecord("doc-1"), sampleDoc()); err != nil {
		t.Fatalf("saving: %v", err)
	}
	text, err := s.SourceText(ctx, "doc-1")
	if err != nil {
		t.Fatalf("loading text: %v", err)
	}
	if text != sampleDoc().Text {
		t.Errorf("text = %q", text)
	}
}

func TestSearchBlocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSource(ctx, sampleRecord("doc-1"), sampleDoc()); err != nil {
		t.Fatalf("saving doc-1: %v", err)
	}
	other := sampleRecord("doc-2")
	if err := s.SaveSource(ctx, other, &parser.ParseResult{
		Blocks: []parser.Block{{Content: "an unrelated fox sighting", Page: 1}},
		Text:   "an unrelated fox sighting",
	}); err != nil {
		t.Fatalf("saving doc-2: %v", err)
	}

	hits, err := s.SearchBlocks(ctx, "doc-1", "fox", 10)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1 (scoped to doc-1)", len(hits))
	}
	if hits[0].Content != "The quick brown fox" {
		t.Errorf("hit content = %q", hits[0].Content)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", hits[0].Score)
	}
}

// ---------------------------------------------------------------------------
// Fields and payload
// ---------------------------------------------------------------------------

func TestSaveAndListFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fields := []citation.ExtractedField{
		{
			ID: "f1", Label: "Effective Date", Value: "2024-01-01", Category: "dates",
			Citations: []citation.Citation{
				citation.NewPDF("doc-1", 2, citation.BBox{Left: 0.1, Top: 0.2, Width: 0.3, Height: 0.04}),
			},
		},
		{ID: "f2", Label: "Parties", Value: "Acme Corp"},
	}
	if err := s.SaveFields(ctx, fields); err != nil {
		t.Fatalf("saving fields: %v", err)
	}

	got, err := s.ListFields(ctx)
	if err != nil {
		t.Fatalf("listing fields: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fields = %d, want 2", len(got))
	}
	if got[0].ID != "f1" || got[1].ID != "f2" {
		t.Errorf("order not preserved: %q, %q", got[0].ID, got[1].ID)
	}

	c := got[0].Citations
	if len(c) != 1 || c[0].Type != citation.KindPDF || c[0].PDF == nil {
		t.Fatalf("citations = %+v", c)
	}
	if c[0].PDF.Page != 2 || c[0].PDF.BBox.Left != 0.1 {
		t.Errorf("citation location = %+v", c[0].PDF)
	}

	// A field without citations loads as an empty slice, not nil.
	if got[1].Citations == nil || len(got[1].Citations) != 0 {
		t.Errorf("empty citations = %#v, want empty slice", got[1].Citations)
	}
}

func TestSaveFieldsReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []citation.ExtractedField{{ID: "f1", Label: "A", Value: "1"}}
	second := []citation.ExtractedField{{ID: "f2", Label: "B", Value: "2"}}

	if err := s.SaveFields(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveFields(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.ListFields(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(got) != 1 || got[0].ID != "f2" {
		t.Errorf("fields = %+v, want only f2", got)
	}
}

func TestLoadPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSource(ctx, sampleRecord("doc-1"), sampleDoc()); err != nil {
		t.Fatalf("saving source: %v", err)
	}
	if err := s.SaveFields(ctx, []citation.ExtractedField{{ID: "f1", Label: "A", Value: "1"}}); err != nil {
		t.Fatalf("saving fields: %v", err)
	}

	sources, fields, err := s.LoadPayload(ctx)
	if err != nil {
		t.Fatalf("loading payload: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != "doc-1" {
		t.Errorf("sources = %+v", sources)
	}
	if len(fields) != 1 || fields[0].ID != "f1" {
		t.Errorf("fields = %+v", fields)
	}
}
