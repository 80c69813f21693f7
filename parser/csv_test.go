package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCSVParser(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payments.csv")
	content := "Code,Description,Amount\nTTD,Temporary total disability,1200.00\nPPD,Permanent partial disability,800.00\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &CSVParser{}
	result, err := p.Parse(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(result.Tables))
	}
	table := result.Tables[0]
	if len(table.Header) != 3 || table.Header[0] != "Code" {
		t.Errorf("header = %v", table.Header)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}

	if len(result.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(result.Blocks))
	}
	b := result.Blocks[1]
	if b.Region == nil || b.Region.StartRow != 1 || b.Region.EndRow != 1 {
		t.Errorf("second row block region = %+v", b.Region)
	}
	if !strings.Contains(b.Content, "Permanent partial disability") {
		t.Errorf("block content = %q", b.Content)
	}

	if !strings.HasPrefix(result.Text, "| Code | Description | Amount |") {
		t.Errorf("text rendering = %q", result.Text[:40])
	}
}

func TestCSVParserEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := (&CSVParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected an error for an empty CSV")
	}
}
