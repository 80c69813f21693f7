// Package resolver maps free-text citation snippets back to locations in
// parsed source documents. Scoring is two-tier: verbatim substring matches
// always score at least 0.5, fuzzy matches are capped at 0.49, so a fuzzy
// match can never outrank a real substring match.
package resolver

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripMarkup removes markup tags and collapses whitespace. Table blocks
// carry structural markup that must not affect text similarity.
func StripMarkup(text string) string {
	text = tagPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Score rates how well a block's content matches a snippet, in [0,1].
//
// Tier 1 (substring): the snippet occurring verbatim inside the block
// scores 0.5 + coverage*0.5; the block occurring inside the snippet
// scores 0.5 + coverage*0.4. Both raw and markup-stripped forms are tried.
//
// Tier 2 (fuzzy): an edit-distance similarity ratio combined with the
// longest common substring, capped at 0.49.
func Score(blockContent, snippet string) float64 {
	bcRaw := strings.ToLower(strings.TrimSpace(blockContent))
	snRaw := strings.ToLower(strings.TrimSpace(snippet))
	bc := strings.ToLower(StripMarkup(bcRaw))
	sn := strings.ToLower(StripMarkup(snRaw))

	if bc == "" || sn == "" {
		return 0
	}

	for _, pair := range [][2]string{{bc, sn}, {bcRaw, snRaw}} {
		block, snip := pair[0], pair[1]
		if strings.Contains(block, snip) {
			coverage := float64(len(snip)) / float64(max(len(block), 1))
			return 0.5 + coverage*0.5
		}
		if strings.Contains(snip, block) {
			coverage := float64(len(block)) / float64(max(len(snip), 1))
			return 0.5 + coverage*0.4
		}
	}

	return fuzzyScore(bc, sn)
}

// maxFuzzyLen bounds the quadratic comparisons; snippets are short, but
// blocks can be a whole page.
const maxFuzzyLen = 2000

func fuzzyScore(block, snippet string) float64 {
	b := []rune(block)
	s := []rune(snippet)
	if len(b) > maxFuzzyLen {
		b = b[:maxFuzzyLen]
	}
	if len(s) > maxFuzzyLen {
		s = s[:maxFuzzyLen]
	}

	ratio := similarityRatio(b, s)
	lcsRatio := float64(longestCommonSubstring(b, s)) / float64(max(len(s), 1))

	raw := ratio*0.6 + lcsRatio*0.4
	if alt := lcsRatio * 0.8; alt > raw {
		raw = alt
	}
	if raw > 0.49 {
		return 0.49
	}
	return raw
}

// similarityRatio is 1 - editDistance/maxLen.
func similarityRatio(a, b []rune) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(editDistance(a, b))/float64(longest)
}

// editDistance is the Levenshtein distance with a rolling row.
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(min(prev[j]+1, cur[j-1]+1), prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// longestCommonSubstring returns the length of the longest contiguous run
// shared by a and b.
func longestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return best
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
