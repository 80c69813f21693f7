package resolver

import (
	"log/slog"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
)

// RawCitation is one citation candidate from the extraction step: a
// verbatim snippet naming its source. Upstream may instead emit a fully
// formed citation (table regions come in this way, with explicit indices).
type RawCitation struct {
	SourceID    string             `json:"sourceId"`
	TextSnippet string             `json:"textSnippet"`
	Explicit    *citation.Citation `json:"citation,omitempty"`
}

// RawField is one extracted field before citation resolution.
type RawField struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	Value     string        `json:"value"`
	Category  string        `json:"category,omitempty"`
	Citations []RawCitation `json:"citations"`
}

// Assembler runs the resolver across all fields of an extraction and
// emits the final citation-enriched field list.
type Assembler struct {
	sources map[string]citation.Source
	docs    map[string]*parser.ParseResult
}

// NewAssembler builds an assembler over the extraction run's sources and
// their parsed documents, keyed by source ID.
func NewAssembler(sources []citation.Source, docs map[string]*parser.ParseResult) *Assembler {
	bySource := make(map[string]citation.Source, len(sources))
	for _, s := range sources {
		bySource[s.ID] = citation.NormalizeSource(s)
	}
	return &Assembler{sources: bySource, docs: docs}
}

// Assemble resolves every citation candidate of every field.
//
// Policy by document kind: pdf citations without a confident match are
// omitted entirely; text and markdown citations pass through, degraded to
// an unknown region when resolution fails. Repeated identical snippets
// yield repeated citation entries; deduplication is deliberately not
// performed.
func (a *Assembler) Assemble(rawFields []RawField) []citation.ExtractedField {
	fields := make([]citation.ExtractedField, 0, len(rawFields))

	for _, rf := range rawFields {
		field := citation.ExtractedField{
			ID:        rf.ID,
			Label:     rf.Label,
			Value:     rf.Value,
			Category:  rf.Category,
			Citations: []citation.Citation{},
		}

		for _, rc := range rf.Citations {
			if rc.Explicit != nil {
				field.Citations = append(field.Citations, *rc.Explicit)
				continue
			}

			src, ok := a.sources[rc.SourceID]
			if !ok {
				slog.Debug("citation names unknown source", "field", rf.ID, "source", rc.SourceID)
				continue
			}
			doc := a.docs[rc.SourceID]
			if doc == nil {
				doc = &parser.ParseResult{}
			}

			c, resolved := Resolve(src, rc.TextSnippet, doc)
			if !resolved && src.Kind == citation.SourcePDF {
				// No confident region; a pdf citation without geometry
				// is useless to the viewer.
				slog.Debug("citation unresolved", "field", rf.ID, "source", rc.SourceID)
				continue
			}
			field.Citations = append(field.Citations, c)
		}

		fields = append(fields, field)
	}

	return fields
}
