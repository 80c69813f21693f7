package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
)

// ErrUnknownSource is returned when an operation names a source that is
// not part of the extraction run.
var ErrUnknownSource = errors.New("viewer: unknown source")

// Loader fetches and parses a source document. Loading is asynchronous
// from the session's point of view and may complete after the user has
// navigated elsewhere.
type Loader interface {
	Load(ctx context.Context, src citation.Source) (*parser.ParseResult, error)
}

// Session binds a controller to the documents of one extraction run. It
// owns the async document loads: every load carries the selection
// generation at the time it started, and completions whose generation is
// no longer current are discarded instead of applied.
type Session struct {
	ctrl   *Controller
	loader Loader

	mu       sync.Mutex
	sources  map[string]citation.Source
	docs     map[string]*parser.ParseResult
	viewErrs map[string]error
	selected string
	gen      uint64
	loading  sync.WaitGroup
}

// NewSession creates a session over the run's sources.
func NewSession(ctrl *Controller, loader Loader, sources []citation.Source) *Session {
	bySource := make(map[string]citation.Source, len(sources))
	for _, s := range sources {
		bySource[s.ID] = citation.NormalizeSource(s)
	}
	ctrl.SetSources(sources)
	return &Session{
		ctrl:     ctrl,
		loader:   loader,
		sources:  bySource,
		docs:     make(map[string]*parser.ParseResult),
		viewErrs: make(map[string]error),
	}
}

// Controller returns the session's active-citation controller.
func (s *Session) Controller() *Controller { return s.ctrl }

// SelectSource switches the displayed source via manual navigation,
// clearing any active citation, and starts loading the document if it is
// not cached yet.
func (s *Session) SelectSource(ctx context.Context, sourceID string) error {
	src, ok := s.source(sourceID)
	if !ok {
		return ErrUnknownSource
	}

	s.ctrl.Navigate(sourceID, 1)
	s.ensureLoaded(ctx, src)
	return nil
}

// ClickCitation runs the citation-click sequence: switch source if
// needed, switch page, activate the highlight. The document load is
// kicked off as well so the highlight has something to render against.
func (s *Session) ClickCitation(ctx context.Context, c citation.Citation) error {
	src, ok := s.source(c.SourceID)
	if !ok {
		return ErrUnknownSource
	}

	s.ensureLoaded(ctx, src)
	s.ctrl.Click(c)
	return nil
}

// Document returns the parsed document for a source, if loaded.
func (s *Session) Document(sourceID string) (*parser.ParseResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[sourceID]
	return doc, ok
}

// ViewError returns the recoverable load error for a source view, if
// any. Re-selecting the source retries the load and clears the error.
func (s *Session) ViewError(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewErrs[sourceID]
}

// Wait blocks until all in-flight loads complete. Intended for tests and
// shutdown.
func (s *Session) Wait() { s.loading.Wait() }

func (s *Session) source(id string) (citation.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	return src, ok
}

// ensureLoaded starts an async load unless the document is cached. The
// generation captured at start is compared on completion; a stale
// completion (the user selected something else meanwhile) is dropped.
func (s *Session) ensureLoaded(ctx context.Context, src citation.Source) {
	s.mu.Lock()
	s.selected = src.ID
	s.gen++
	gen := s.gen
	delete(s.viewErrs, src.ID)
	if _, cached := s.docs[src.ID]; cached {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.loading.Add(1)
	go func() {
		defer s.loading.Done()
		doc, err := s.loader.Load(ctx, src)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || s.selected != src.ID {
			// Stale completion; the user moved on.
			return
		}
		if err != nil {
			s.viewErrs[src.ID] = err
			return
		}
		s.docs[src.ID] = doc
	}()
}

// RenderTarget serializes page renders for one drawing surface. Starting
// a render cancels any in-flight render for the same target, so two
// pages are never written into one surface concurrently.
type RenderTarget struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Begin cancels the previous render, if any, and returns the context for
// the new one.
func (t *RenderTarget) Begin(ctx context.Context) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	ctx, t.cancel = context.WithCancel(ctx)
	return ctx
}

// Stop cancels the in-flight render without starting a new one.
func (t *RenderTarget) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
