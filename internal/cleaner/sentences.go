package cleaner

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// similarityThreshold is the ratio at or above which a segment counts as a
// near-duplicate of one already kept.
const similarityThreshold = 0.85

// splitSegments cuts text at sentence-ending punctuation followed by
// whitespace and a capital letter, or at runs of two or more newlines. The
// cut whitespace is dropped.
func splitSegments(text string) []string {
	rs := []rune(text)
	var segments []string
	start := 0

	for i := 0; i < len(rs); {
		if i > 0 && isSentenceEnd(rs[i-1]) && unicode.IsSpace(rs[i]) {
			j := i
			for j < len(rs) && unicode.IsSpace(rs[j]) {
				j++
			}
			if j < len(rs) && rs[j] >= 'A' && rs[j] <= 'Z' {
				segments = append(segments, string(rs[start:i]))
				start, i = j, j
				continue
			}
		}
		if rs[i] == '\n' && i+1 < len(rs) && rs[i+1] == '\n' {
			j := i
			for j < len(rs) && rs[j] == '\n' {
				j++
			}
			segments = append(segments, string(rs[start:i]))
			start, i = j, j
			continue
		}
		i++
	}
	return append(segments, string(rs[start:]))
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// dedupeSentences drops segments that are near-duplicates of an earlier kept
// segment. The first occurrence wins. Kept segments are joined by a blank line.
func dedupeSentences(text string) string {
	var (
		kept   []string
		folded [][]string
	)
	for _, seg := range splitSegments(text) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		chars := runeStrings(strings.ToLower(seg))
		if isNearDuplicate(chars, folded) {
			continue
		}
		kept = append(kept, seg)
		folded = append(folded, chars)
	}
	return strings.Join(kept, "\n\n")
}

func isNearDuplicate(chars []string, prior [][]string) bool {
	for _, p := range prior {
		if difflib.NewMatcher(chars, p).Ratio() >= similarityThreshold {
			return true
		}
	}
	return false
}

// Similarity returns the sequence-matcher ratio between two strings after
// case folding, compared character by character.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runeStrings(strings.ToLower(a)), runeStrings(strings.ToLower(b))).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
