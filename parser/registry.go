package parser

import "fmt"

// Registry maps file formats to parsers.
type Registry struct {
	parsers map[string]Parser
	remote  *RemoteConfig
}

// NewRegistry creates a registry with the built-in native parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	for _, p := range []Parser{
		&PDFParser{},
		&TextParser{},
		&MarkdownParser{},
		&CSVParser{},
		&XLSXParser{},
	} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// SetRemote routes paged formats through the remote bbox parse service.
// Native parsers remain registered for everything else.
func (r *Registry) SetRemote(cfg RemoteConfig) {
	r.remote = &cfg
	rp := NewRemoteParser(cfg)
	for _, f := range rp.SupportedFormats() {
		r.parsers[f] = rp
	}
}

// Get returns the parser for a format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}
