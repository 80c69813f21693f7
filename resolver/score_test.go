package resolver

import (
	"math"
	"strings"
	"testing"
)

const (
	declarationBlock = "PTP Dr. Nguyen declares P&S/MMI as of 04/10/2025 for all accepted conditions. The treating physician recommends future medical care limited to flare-up management as needed here."
	snippet49        = "PTP Dr. Nguyen declares P&S/MMI as of 04/10/2025"
	unrelatedBlock   = "- TTD ends 02/29/2025."
)

func TestSubstringScore(t *testing.T) {
	got := Score(declarationBlock, snippet49)
	want := 0.5 + float64(len(snippet49))/float64(len(declarationBlock))*0.5

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
	if got < 0.5 || got > 1.0 {
		t.Errorf("substring score %v outside [0.5, 1.0]", got)
	}
}

func TestBlockInsideSnippetScore(t *testing.T) {
	block := "04/10/2025"
	snippet := "declared P&S/MMI as of 04/10/2025 for all conditions"

	got := Score(block, snippet)
	want := 0.5 + float64(len(block))/float64(len(snippet))*0.4

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
	if got > 0.9 {
		t.Errorf("block-in-snippet score %v above 0.9 cap", got)
	}
}

func TestFuzzyScoreCapped(t *testing.T) {
	tests := []struct {
		name    string
		block   string
		snippet string
	}{
		{"unrelated", unrelatedBlock, snippet49},
		{"near duplicate", "PTP Dr. Nguyen declared P&S and MMI on 04/10/2025", snippet49},
		{"single char diff", strings.Replace(snippet49, "Nguyen", "Nguyan", 1), snippet49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.block, tt.snippet)
			if got > 0.49 {
				t.Errorf("fuzzy score = %v, must never exceed 0.49", got)
			}
		})
	}
}

func TestSubstringAlwaysBeatsFuzzy(t *testing.T) {
	substring := Score(declarationBlock, snippet49)
	fuzzy := Score(unrelatedBlock, snippet49)

	if substring < 0.5 {
		t.Errorf("substring score %v below 0.5", substring)
	}
	if fuzzy >= substring {
		t.Errorf("fuzzy score %v must not reach substring score %v", fuzzy, substring)
	}
}

func TestScoreStripsMarkup(t *testing.T) {
	block := "<table><tr><td>TTD</td><td>ends 02/29/2025</td></tr></table>"
	snippet := "TTD ends 02/29/2025"

	got := Score(block, snippet)
	if got < 0.5 {
		t.Errorf("markup-wrapped substring scored %v, want >= 0.5", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	if got := Score("", "snippet"); got != 0 {
		t.Errorf("empty block scored %v", got)
	}
	if got := Score("block", "   "); got != 0 {
		t.Errorf("blank snippet scored %v", got)
	}
	if got := Score("<td></td>", "snippet"); got != 0 {
		t.Errorf("markup-only block scored %v", got)
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<b>bold</b> text", "bold text"},
		{"a\n\n  b\tc", "a b c"},
		{"plain", "plain"},
		{"<tr><td>x</td><td>y</td></tr>", "x y"},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLongestCommonSubstring(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"abcdef", "zabcy", 3},
		{"abc", "xyz", 0},
		{"", "abc", 0},
		{"same", "same", 4},
	}
	for _, tt := range tests {
		if got := longestCommonSubstring([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("longestCommonSubstring(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := editDistance([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
