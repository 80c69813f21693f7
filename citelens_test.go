package citelens

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/store"
)

// ---------------------------------------------------------------------------
// Payload
// ---------------------------------------------------------------------------

const legacyPayload = `{
  "sources": [
    {"id": "doc-1", "name": "Lease", "file": "lease.pdf", "pageCount": 12},
    {"id": "notes-1", "name": "Notes", "file": "notes.md", "type": "md"}
  ],
  "fields": [
    {
      "id": "rent",
      "label": "Monthly Rent",
      "value": "$2,500",
      "citations": [
        {"sourceId": "doc-1", "page": 3, "bbox": {"left": 0.1, "top": 0.2, "width": 0.4, "height": 0.05}},
        {"type": "md", "sourceId": "notes-1", "tableIndex": 0, "startRow": 2}
      ]
    },
    {"id": "empty", "label": "Empty", "value": ""}
  ]
}`

func writePayload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPayloadFileNormalizesLegacy(t *testing.T) {
	p, err := LoadPayloadFile(writePayload(t, legacyPayload))
	if err != nil {
		t.Fatalf("LoadPayloadFile: %v", err)
	}

	// Untyped source defaults to pdf.
	src, ok := p.Source("doc-1")
	if !ok {
		t.Fatal("doc-1 missing")
	}
	if src.Kind != citation.SourcePDF {
		t.Errorf("doc-1 kind = %q, want pdf", src.Kind)
	}
	if md, _ := p.Source("notes-1"); md.Kind != citation.SourceMarkdown {
		t.Errorf("notes-1 kind = %q, want md", md.Kind)
	}

	// Untagged citation upgrades to a tagged pdf citation.
	cits := p.Fields[0].Citations
	if len(cits) != 2 {
		t.Fatalf("citations = %d, want 2", len(cits))
	}
	if cits[0].Type != citation.KindPDF || cits[0].PDF == nil || cits[0].PDF.Page != 3 {
		t.Errorf("legacy citation = %+v", cits[0])
	}
	if cits[1].Type != citation.KindMarkdown || cits[1].Markdown == nil {
		t.Fatalf("md citation = %+v", cits[1])
	}
	r := cits[1].Markdown.Region
	if r == nil || r.StartRow != 2 || r.EndRow != 2 {
		t.Errorf("region = %+v, want single row 2", r)
	}

	// Missing citations decode as an empty slice.
	if p.Fields[1].Citations == nil {
		t.Error("empty field citations should be non-nil")
	}
}

func TestLoadPayloadFileInvalid(t *testing.T) {
	_, err := LoadPayloadFile(writePayload(t, "not json"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p, err := LoadPayloadFile(writePayload(t, legacyPayload))
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.json")
	if err := p.WriteFile(out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p2, err := LoadPayloadFile(out)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}

	if len(p2.Sources) != len(p.Sources) || len(p2.Fields) != len(p.Fields) {
		t.Fatalf("round trip changed shape: %d/%d sources, %d/%d fields",
			len(p2.Sources), len(p.Sources), len(p2.Fields), len(p.Fields))
	}
	if p2.Fields[0].Citations[0].Type != citation.KindPDF {
		t.Errorf("citation type lost in round trip")
	}
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db_name: mylens
storage_dir: local
chat:
  provider: openrouter
  model: some/model
viewer:
  dwell_seconds: 30
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBName != "mylens" {
		t.Errorf("db name = %q", cfg.DBName)
	}
	if cfg.Chat.Provider != "openrouter" || cfg.Chat.Model != "some/model" {
		t.Errorf("chat = %+v", cfg.Chat)
	}
	if cfg.Viewer.DwellSeconds != 30 {
		t.Errorf("dwell = %d", cfg.Viewer.DwellSeconds)
	}
	// Unset fields keep defaults.
	if cfg.Viewer.FadeMillis != 400 {
		t.Errorf("fade = %d, want default 400", cfg.Viewer.FadeMillis)
	}
	if cfg.resolveDBPath() != "mylens.db" {
		t.Errorf("db path = %q", cfg.resolveDBPath())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CITELENS_CHAT_MODEL", "env-model")
	t.Setenv("CITELENS_DB_PATH", "/tmp/env.db")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chat.Model != "env-model" {
		t.Errorf("model = %q, want env override", cfg.Chat.Model)
	}
	if cfg.resolveDBPath() != "/tmp/env.db" {
		t.Errorf("db path = %q", cfg.resolveDBPath())
	}
}

func TestViewerConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	vc := cfg.viewerConfig()
	if vc.Dwell.Seconds() != 15 {
		t.Errorf("dwell = %v", vc.Dwell)
	}
	if vc.Fade.Milliseconds() != 400 {
		t.Errorf("fade = %v", vc.Fade)
	}
}

// ---------------------------------------------------------------------------
// Format mapping
// ---------------------------------------------------------------------------

func TestKindForFormat(t *testing.T) {
	tests := []struct {
		format string
		want   citation.SourceKind
		ok     bool
	}{
		{"pdf", citation.SourcePDF, true},
		{"docx", citation.SourcePDF, true},
		{"txt", citation.SourceText, true},
		{"csv", citation.SourceCSV, true},
		{"md", citation.SourceMarkdown, true},
		{"xlsx", citation.SourceMarkdown, true},
		{"exe", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := kindForFormat(tt.format)
			if tt.ok != (err == nil) {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if got != tt.want {
				t.Errorf("kind = %q, want %q", got, tt.want)
			}
			if !tt.ok && !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("err = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

func TestFileHashMatchesStoredContentHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	data := []byte("lease commencing January 2026")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := fileHash(path)
	if err != nil {
		t.Fatalf("fileHash: %v", err)
	}
	if want := store.HashContent(data); got != want {
		t.Errorf("fileHash = %s, want %s", got, want)
	}

	if err := os.WriteFile(path, []byte("amended terms"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := fileHash(path)
	if err != nil {
		t.Fatalf("fileHash: %v", err)
	}
	if changed == got {
		t.Error("hash unchanged after the file content changed")
	}
}
