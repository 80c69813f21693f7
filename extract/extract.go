package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/llm"
	"github.com/pdewitt/citelens/resolver"
)

// extractionPrompt asks the model to fill in the requested fields and
// quote the supporting passages verbatim. Verbatim quotes are what the
// resolver scores against the parsed blocks, so the prompt leans on
// that requirement hard.
const extractionPrompt = `You are a document data extraction engine.
Extract the requested fields from the document below.

FIELDS TO EXTRACT:
%s

Return a JSON object with exactly one key:
  "fields" : array of {"id": string, "value": string, "snippets": array of string}

Rules:
- "id" must be one of the field ids listed above.
- "value" is the extracted value, normalised (dates as YYYY-MM-DD, numbers without thousands separators).
- "snippets" are VERBATIM quotes from the document that support the value. Copy the text exactly as it appears, including punctuation. One to three snippets per field.
- Omit fields that are not present in the document. Never guess.
- Do NOT include any text outside the JSON object.

DOCUMENT (%s):
%s`

// defaultConcurrency is the default semaphore size for parallel source extraction.
const defaultConcurrency = 4

// perSourceTimeout caps how long a single source extraction can take.
const perSourceTimeout = 5 * time.Minute

// maxDocumentChars truncates very large documents before prompting.
const maxDocumentChars = 120_000

// Input is one source's text ready for extraction.
type Input struct {
	Source citation.Source
	Text   string
}

// Extractor runs schema-driven extraction across sources.
type Extractor struct {
	chat        *llm.Client
	concurrency int
}

// New creates an extractor.
func New(chat *llm.Client, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Extractor{chat: chat, concurrency: concurrency}
}

// Run extracts the schema's fields from every input and merges the
// per-source results into one raw field list, in schema order.
func (e *Extractor) Run(ctx context.Context, schema *Schema, inputs []Input) ([]resolver.RawField, error) {
	specs := schema.Flatten()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, e.concurrency)
		perSrc  = make(map[string][]sourceField)
		errs    []string
		started = time.Now()
	)

	for _, in := range inputs {
		wg.Add(1)
		go func(in Input) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				errs = append(errs, fmt.Sprintf("source %s: %v", in.Source.ID, ctx.Err()))
				mu.Unlock()
				return
			}

			srcCtx, cancel := context.WithTimeout(ctx, perSourceTimeout)
			defer cancel()

			srcStart := time.Now()
			fields, err := e.extractSource(srcCtx, specs, in)
			if err != nil {
				slog.Warn("extract: source failed", "source", in.Source.ID, "error", err,
					"elapsed", time.Since(srcStart).Round(time.Millisecond))
				mu.Lock()
				errs = append(errs, fmt.Sprintf("source %s: %v", in.Source.ID, err))
				mu.Unlock()
				return
			}
			slog.Info("extract: source done", "source", in.Source.ID,
				"fields", len(fields),
				"elapsed", time.Since(srcStart).Round(time.Millisecond),
				"total_elapsed", time.Since(started).Round(time.Millisecond))
			mu.Lock()
			perSrc[in.Source.ID] = fields
			mu.Unlock()
		}(in)
	}

	wg.Wait()

	if len(errs) == len(inputs) && len(inputs) > 0 {
		return nil, fmt.Errorf("extract: all %d sources failed; first error: %s", len(inputs), errs[0])
	}
	if len(errs) > 0 {
		slog.Warn("extract: completed with failures",
			"succeeded", len(inputs)-len(errs), "failed", len(errs))
	}

	return merge(specs, inputs, perSrc), nil
}

// sourceField is one field as extracted from a single source.
type sourceField struct {
	ID       string
	Value    string
	Snippets []string
}

// extractionResult is the JSON shape returned by the extraction LLM call.
type extractionResult struct {
	Fields []struct {
		ID       string   `json:"id"`
		Value    string   `json:"value"`
		Snippets []string `json:"snippets"`
	} `json:"fields"`
}

func (e *Extractor) extractSource(ctx context.Context, specs []FieldSpec, in Input) ([]sourceField, error) {
	text := in.Text
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
		slog.Debug("extract: truncating document", "source", in.Source.ID, "chars", maxDocumentChars)
	}

	prompt := fmt.Sprintf(extractionPrompt, promptList(specs), in.Source.Name, text)

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("extraction llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing extraction result: %w", err)
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("unmarshalling extraction result: %w", err)
	}

	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		known[spec.ID] = true
	}

	var fields []sourceField
	for _, f := range result.Fields {
		if !known[f.ID] {
			slog.Debug("extract: dropping unknown field id", "source", in.Source.ID, "id", f.ID)
			continue
		}
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		fields = append(fields, sourceField{ID: f.ID, Value: f.Value, Snippets: f.Snippets})
	}
	return fields, nil
}

// merge combines per-source results into schema order. The first
// non-empty value wins; citation candidates accumulate across sources
// in input order.
func merge(specs []FieldSpec, inputs []Input, perSrc map[string][]sourceField) []resolver.RawField {
	byID := make(map[string]*resolver.RawField)
	for _, in := range inputs {
		for _, sf := range perSrc[in.Source.ID] {
			rf, ok := byID[sf.ID]
			if !ok {
				rf = &resolver.RawField{ID: sf.ID, Value: sf.Value}
				byID[sf.ID] = rf
			}
			for _, snip := range sf.Snippets {
				if strings.TrimSpace(snip) == "" {
					continue
				}
				rf.Citations = append(rf.Citations, resolver.RawCitation{
					SourceID:    in.Source.ID,
					TextSnippet: snip,
				})
			}
		}
	}

	var out []resolver.RawField
	for _, spec := range specs {
		rf, ok := byID[spec.ID]
		if !ok {
			continue
		}
		rf.Label = spec.Label
		rf.Category = spec.Category
		out = append(out, *rf)
	}
	return out
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON attempts to find a valid JSON object in the LLM response text.
// It handles common LLM quirks: markdown code blocks, text before/after JSON.
func extractJSON(raw string) (string, error) {
	// Strip markdown code blocks first.
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	// Find the first '{' and last '}' to extract the JSON object.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object found in response")
}
