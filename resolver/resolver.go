package resolver

import (
	"strings"
	"unicode"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
)

// scoreThreshold is the minimum winning score for a match to count;
// anything below it leaves the citation unresolved.
const scoreThreshold = 0.1

// BestMatch scores a snippet against every block and returns the winner.
// Navigational and empty blocks are skipped. Exact score ties prefer the
// block with the shorter text, which gives the tighter region. The third
// return is false when no block clears the threshold.
func BestMatch(snippet string, blocks []parser.Block) (parser.Block, float64, bool) {
	var best parser.Block
	bestScore := 0.0
	found := false

	for _, b := range parser.FilterBlocks(blocks) {
		score := Score(b.Content, snippet)
		switch {
		case score > bestScore || !found && score > 0:
			best, bestScore, found = b, score, true
		case found && score == bestScore && len(b.Content) < len(best.Content):
			best = b
		}
	}

	if !found || bestScore < scoreThreshold {
		return parser.Block{}, bestScore, false
	}
	return best, bestScore, true
}

// Resolve maps a snippet to a kind-specific citation for one source.
// It never fails: the second return reports whether a confident location
// was found, and the caller decides what an unresolved citation becomes.
//
// For paged sources the winning block's bbox and page are used. For flat
// text sources the offset range is located by scanning the document text.
// Table regions are never produced here; upstream extraction emits those
// with explicit indices.
func Resolve(src citation.Source, snippet string, doc *parser.ParseResult) (citation.Citation, bool) {
	switch src.Kind {
	case citation.SourceText:
		return resolveText(src.ID, snippet, doc)
	case citation.SourceCSV, citation.SourceMarkdown:
		// Snippet-only markdown citation; the renderer locates the span.
		return citation.NewMarkdownSnippet(src.ID, snippet), true
	default:
		return resolvePDF(src.ID, snippet, doc)
	}
}

func resolvePDF(sourceID, snippet string, doc *parser.ParseResult) (citation.Citation, bool) {
	var candidates []parser.Block
	for _, b := range doc.Blocks {
		if b.BBox != nil {
			candidates = append(candidates, b)
		}
	}

	block, _, ok := BestMatch(snippet, candidates)
	if !ok {
		return citation.Citation{}, false
	}
	return citation.NewPDF(sourceID, block.Page, *block.BBox), true
}

func resolveText(sourceID, snippet string, doc *parser.ParseResult) (citation.Citation, bool) {
	stripped := StripMarkup(snippet)
	if start, end := indexFold(doc.Text, stripped); start >= 0 {
		return citation.NewText(sourceID, start, end, snippet), true
	}

	// The snippet is not verbatim in the document; fall back to the best
	// matching block's offset range.
	if block, _, ok := BestMatch(snippet, doc.Blocks); ok && block.End > block.Start {
		return citation.NewText(sourceID, block.Start, block.End, snippet), true
	}

	// Citation present, region unknown.
	return citation.NewText(sourceID, 0, 0, snippet), false
}

// indexFold locates needle in haystack ignoring case, returning the
// [start, end) byte range in the original string. Case folding can
// change a rune's byte length, so offsets found in the folded text are
// mapped back through the original rather than used directly.
func indexFold(haystack, needle string) (int, int) {
	if needle == "" {
		return -1, -1
	}
	if i := strings.Index(haystack, needle); i >= 0 {
		return i, i + len(needle)
	}

	folded := strings.ToLower(needle)
	i := strings.Index(strings.ToLower(haystack), folded)
	if i < 0 {
		return -1, -1
	}

	start, end := -1, len(haystack)
	low := 0
	for j, r := range haystack {
		if start < 0 && low >= i {
			start = j
		}
		if low >= i+len(folded) {
			end = j
			break
		}
		low += len(string(unicode.ToLower(r)))
	}
	if start < 0 {
		start = len(haystack)
	}
	return start, end
}
