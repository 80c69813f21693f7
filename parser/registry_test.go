package parser

import "testing"

func TestRegistryFormats(t *testing.T) {
	r := NewRegistry()

	for _, format := range []string{"pdf", "txt", "md", "markdown", "csv", "xlsx"} {
		if _, err := r.Get(format); err != nil {
			t.Errorf("Get(%q) = %v, want a parser", format, err)
		}
	}

	// Legacy OLE .xls is not readable by the xlsx path and must not be
	// silently routed there.
	for _, format := range []string{"xls", "exe", ""} {
		if _, err := r.Get(format); err == nil {
			t.Errorf("Get(%q) succeeded, want an error", format)
		}
	}
}

func TestRegistryRemoteOverridesPagedFormats(t *testing.T) {
	r := NewRegistry()
	r.SetRemote(RemoteConfig{BaseURL: "http://localhost:9111", APIKey: "k"})

	p, err := r.Get("pdf")
	if err != nil {
		t.Fatalf("Get(pdf) = %v", err)
	}
	if _, ok := p.(*RemoteParser); !ok {
		t.Errorf("pdf parser = %T, want the remote parser", p)
	}

	p, err = r.Get("txt")
	if err != nil {
		t.Fatalf("Get(txt) = %v", err)
	}
	if _, ok := p.(*RemoteParser); ok {
		t.Error("txt must stay on the native parser")
	}
}
