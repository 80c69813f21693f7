package citelens

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pdewitt/citelens/citation"
)

// Payload is the citation-enriched output of an extraction run: the
// source list plus every extracted field with its resolved citations.
// This is the document the viewer consumes.
type Payload struct {
	Sources []citation.Source         `json:"sources"`
	Fields  []citation.ExtractedField `json:"fields"`
}

// LoadPayloadFile reads and normalizes a payload file. Legacy payloads
// with untagged citations and untyped sources are upgraded on read.
func LoadPayloadFile(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.normalize()
	return &p, nil
}

// WriteFile saves the payload as JSON.
func (p *Payload) WriteFile(path string) error {
	p.normalize()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (p *Payload) normalize() {
	for i := range p.Sources {
		p.Sources[i] = citation.NormalizeSource(p.Sources[i])
	}
	for i := range p.Fields {
		if p.Fields[i].Citations == nil {
			p.Fields[i].Citations = []citation.Citation{}
		}
	}
}

// Source returns the source with the given ID.
func (p *Payload) Source(id string) (citation.Source, bool) {
	for _, s := range p.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return citation.Source{}, false
}
