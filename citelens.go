// Package citelens links LLM-extracted fields back to exact locations
// in their source documents and drives the viewer that displays them.
package citelens

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/extract"
	"github.com/pdewitt/citelens/llm"
	"github.com/pdewitt/citelens/parser"
	"github.com/pdewitt/citelens/resolver"
	"github.com/pdewitt/citelens/store"
	"github.com/pdewitt/citelens/viewer"
)

// Engine is the main entry point for the citation-linking pipeline.
type Engine interface {
	// AddSource parses a document and registers it as a source.
	// Returns the source ID. Skips if the content hash is unchanged.
	AddSource(ctx context.Context, path string, opts ...SourceOption) (string, error)

	// Update re-checks a source by hash. Re-parses if changed.
	Update(ctx context.Context, sourceID string) (bool, error)

	// UpdateAll checks every registered source for changes.
	UpdateAll(ctx context.Context) ([]UpdateResult, error)

	// Delete removes a source and its parsed data.
	Delete(ctx context.Context, sourceID string) error

	// ListSources returns all registered sources.
	ListSources(ctx context.Context) ([]store.SourceRecord, error)

	// Extract runs schema-driven LLM extraction over all sources,
	// resolves every citation candidate, and stores the result.
	Extract(ctx context.Context, schemaPath string) ([]citation.ExtractedField, error)

	// Payload returns the stored sources and fields.
	Payload(ctx context.Context) (*Payload, error)

	// NewViewer creates a viewer session over the registered sources.
	NewViewer(ctx context.Context) (*viewer.Session, error)

	// ViewerFor creates a viewer session over an explicit source set,
	// documents loading lazily from the store.
	ViewerFor(sources []citation.Source) *viewer.Session

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// UpdateResult reports the outcome of a source update check.
type UpdateResult struct {
	SourceID string `json:"source_id"`
	File     string `json:"file"`
	Changed  bool   `json:"changed"`
	Error    error  `json:"error,omitempty"`
}

// SourceOption configures source registration.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	id            string
	name          string
	secondaryFile string
	forceReparse  bool
}

// WithSourceID pins the source ID instead of generating one.
func WithSourceID(id string) SourceOption {
	return func(o *sourceOptions) { o.id = id }
}

// WithSourceName sets the display name (defaults to the file name).
func WithSourceName(name string) SourceOption {
	return func(o *sourceOptions) { o.name = name }
}

// WithSecondaryFile attaches a companion file, e.g. the pdf rendering
// of a spreadsheet.
func WithSecondaryFile(path string) SourceOption {
	return func(o *sourceOptions) { o.secondaryFile = path }
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() SourceOption {
	return func(o *sourceOptions) { o.forceReparse = true }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	store   *store.Store
	chat    *llm.Client
	parsers *parser.Registry
}

// New creates a citelens engine with the given configuration.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chat, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	reg := parser.NewRegistry()
	if cfg.Reducto != nil {
		reg.SetRemote(parser.RemoteConfig{
			APIKey:  cfg.Reducto.APIKey,
			BaseURL: cfg.Reducto.BaseURL,
		})
	}

	return &engine{
		cfg:     cfg,
		store:   s,
		chat:    chat,
		parsers: reg,
	}, nil
}

func (e *engine) Store() *store.Store { return e.store }

func (e *engine) Close() error { return e.store.Close() }

// AddSource parses a document and registers it.
func (e *engine) AddSource(ctx context.Context, path string, opts ...SourceOption) (string, error) {
	options := &sourceOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}

	// Skip when an unchanged source already covers this file.
	if !options.forceReparse {
		if rec, ok, err := e.sourceByFile(ctx, absPath); err != nil {
			return "", err
		} else if ok && rec.ContentHash == hash {
			return rec.ID, nil
		}
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	kind, err := kindForFormat(format)
	if err != nil {
		return "", err
	}

	id := options.id
	if id == "" {
		if rec, ok, lookupErr := e.sourceByFile(ctx, absPath); lookupErr == nil && ok {
			id = rec.ID // changed content, same source
		} else {
			id = uuid.New().String()
		}
	}
	name := options.name
	if name == "" {
		name = filepath.Base(absPath)
	}

	started := time.Now()
	doc, err := e.parse(ctx, format, absPath)
	if err != nil {
		return "", err
	}

	rec := store.SourceRecord{
		Source: citation.Source{
			ID:            id,
			Name:          name,
			File:          absPath,
			Kind:          kind,
			PageCount:     doc.PageCount,
			SecondaryFile: options.secondaryFile,
		},
		ContentHash: hash,
	}
	if err := e.store.SaveSource(ctx, rec, doc); err != nil {
		return "", fmt.Errorf("saving source: %w", err)
	}

	slog.Info("source added", "id", id, "file", absPath, "kind", kind,
		"blocks", len(doc.Blocks), "pages", doc.PageCount,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return id, nil
}

// Update re-checks a source by hash and re-parses if the file changed.
func (e *engine) Update(ctx context.Context, sourceID string) (bool, error) {
	rec, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return false, ErrSourceNotFound
	}

	hash, err := fileHash(rec.File)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}
	if hash == rec.ContentHash {
		return false, nil
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(rec.File), "."))
	doc, err := e.parse(ctx, format, rec.File)
	if err != nil {
		return false, err
	}

	rec.ContentHash = hash
	rec.PageCount = doc.PageCount
	if err := e.store.SaveSource(ctx, *rec, doc); err != nil {
		return false, fmt.Errorf("saving source: %w", err)
	}
	slog.Info("source updated", "id", sourceID, "blocks", len(doc.Blocks))
	return true, nil
}

// UpdateAll checks every source for changes.
func (e *engine) UpdateAll(ctx context.Context) ([]UpdateResult, error) {
	recs, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(recs))
	for _, rec := range recs {
		changed, err := e.Update(ctx, rec.ID)
		results = append(results, UpdateResult{
			SourceID: rec.ID,
			File:     rec.File,
			Changed:  changed,
			Error:    err,
		})
	}
	return results, nil
}

// Delete removes a source and its parsed data.
func (e *engine) Delete(ctx context.Context, sourceID string) error {
	if _, err := e.store.GetSource(ctx, sourceID); err != nil {
		return ErrSourceNotFound
	}
	return e.store.DeleteSource(ctx, sourceID)
}

// ListSources returns all registered sources.
func (e *engine) ListSources(ctx context.Context) ([]store.SourceRecord, error) {
	return e.store.ListSources(ctx)
}

// Extract runs the extraction pipeline: LLM extraction over every
// source's text, snippet resolution against the parsed blocks, and
// persistence of the final fields.
func (e *engine) Extract(ctx context.Context, schemaPath string) ([]citation.ExtractedField, error) {
	schema, err := extract.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	recs, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no sources registered")
	}

	sources := make([]citation.Source, 0, len(recs))
	docs := make(map[string]*parser.ParseResult, len(recs))
	inputs := make([]extract.Input, 0, len(recs))
	for _, rec := range recs {
		doc, err := e.store.Document(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("loading source %s: %w", rec.ID, err)
		}
		sources = append(sources, rec.Source)
		docs[rec.ID] = doc
		inputs = append(inputs, extract.Input{Source: rec.Source, Text: doc.Text})
	}

	extractor := extract.New(e.chat, e.cfg.ExtractConcurrency)
	rawFields, err := extractor.Run(ctx, schema, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}

	fields := resolver.NewAssembler(sources, docs).Assemble(rawFields)

	if err := e.store.SaveFields(ctx, fields); err != nil {
		return nil, fmt.Errorf("saving fields: %w", err)
	}
	slog.Info("extraction complete", "fields", len(fields), "sources", len(sources))
	return fields, nil
}

// Payload returns the stored sources and fields.
func (e *engine) Payload(ctx context.Context) (*Payload, error) {
	sources, fields, err := e.store.LoadPayload(ctx)
	if err != nil {
		return nil, err
	}
	p := &Payload{Sources: sources, Fields: fields}
	p.normalize()
	return p, nil
}

// NewViewer creates a viewer session whose documents load lazily from
// the store.
func (e *engine) NewViewer(ctx context.Context) (*viewer.Session, error) {
	recs, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	sources := make([]citation.Source, len(recs))
	for i, rec := range recs {
		sources[i] = rec.Source
	}

	return e.ViewerFor(sources), nil
}

// ViewerFor creates a viewer session over an explicit source set.
func (e *engine) ViewerFor(sources []citation.Source) *viewer.Session {
	ctrl := viewer.NewController(e.cfg.viewerConfig())
	return viewer.NewSession(ctrl, &storeLoader{store: e.store}, sources)
}

// storeLoader adapts the store to the viewer's document loader.
type storeLoader struct {
	store *store.Store
}

func (l *storeLoader) Load(ctx context.Context, src citation.Source) (*parser.ParseResult, error) {
	return l.store.Document(ctx, src.ID)
}

func (e *engine) parse(ctx context.Context, format, path string) (*parser.ParseResult, error) {
	p, err := e.parsers.Get(format)
	if err != nil {
		if format == "docx" || format == "pptx" {
			return nil, ErrRemoteParserRequired
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	doc, err := p.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return doc, nil
}

// sourceByFile finds the source registered for an absolute path.
func (e *engine) sourceByFile(ctx context.Context, absPath string) (*store.SourceRecord, bool, error) {
	recs, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range recs {
		if recs[i].File == absPath {
			return &recs[i], true, nil
		}
	}
	return nil, false, nil
}

// kindForFormat maps a file extension to the viewer document kind.
func kindForFormat(format string) (citation.SourceKind, error) {
	switch format {
	case "pdf", "docx", "pptx":
		return citation.SourcePDF, nil
	case "txt":
		return citation.SourceText, nil
	case "csv":
		return citation.SourceCSV, nil
	case "md", "markdown", "xlsx":
		return citation.SourceMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// fileHash returns the content hash of a file, in the same form the
// store records for each source.
func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return store.HashContent(data), nil
}
