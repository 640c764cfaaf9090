package cleaner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordClass is the body of a character class matching one word character:
// any letter, any number or underscore. Patterns use it in place of \w.
const wordClass = `\p{L}\p{N}_`

// wordRegexp is a regexp whose \b assertions are judged against Unicode word
// characters. RE2 only knows ASCII word characters, so "Cañada" has a
// boundary inside it and "mapÉCOLE" has one after "map".
//
// Every \b in a pattern must sit next to a literal ASCII word character. RE2's
// boundary is then never stricter than the Unicode one, and each candidate
// match only needs its boundary positions rechecked.
type wordRegexp struct {
	re     *regexp.Regexp
	bounds []int
}

// mustCompileWord compiles expr, marking each \b with an empty named group
// so its position can be recovered from a match.
func mustCompileWord(expr string) *wordRegexp {
	parts := strings.Split(expr, `\b`)
	var b strings.Builder
	b.WriteString(parts[0])
	for i, part := range parts[1:] {
		fmt.Fprintf(&b, `\b(?P<wb%d>)`, i)
		b.WriteString(part)
	}

	re := regexp.MustCompile(b.String())
	w := &wordRegexp{re: re}
	for i := range len(parts) - 1 {
		w.bounds = append(w.bounds, re.SubexpIndex(fmt.Sprintf("wb%d", i)))
	}
	return w
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// atBoundary reports whether byte offset i of s separates a word character
// from a non-word character, treating both ends of s as non-word.
func atBoundary(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

// find returns the first match in s starting at or after from whose
// boundaries all hold, as absolute byte offsets.
func (w *wordRegexp) find(s string, from int) (start, end int, ok bool) {
	for from <= len(s) {
		loc := w.re.FindStringSubmatchIndex(s[from:])
		if loc == nil {
			return 0, 0, false
		}
		valid := true
		for _, g := range w.bounds {
			if loc[2*g] >= 0 && !atBoundary(s, from+loc[2*g]) {
				valid = false
				break
			}
		}
		if valid {
			return from + loc[0], from + loc[1], true
		}
		from += loc[0] + runeWidth(s, from+loc[0])
	}
	return 0, 0, false
}

func runeWidth(s string, i int) int {
	if i >= len(s) {
		return 1
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return size
}

// MatchString reports whether s contains a match.
func (w *wordRegexp) MatchString(s string) bool {
	if len(w.bounds) == 0 {
		return w.re.MatchString(s)
	}
	_, _, ok := w.find(s, 0)
	return ok
}

// ReplaceAllLiteralString replaces every non-overlapping match with repl.
func (w *wordRegexp) ReplaceAllLiteralString(s, repl string) string {
	if len(w.bounds) == 0 {
		return w.re.ReplaceAllLiteralString(s, repl)
	}

	var b strings.Builder
	last := 0
	for last <= len(s) {
		start, end, ok := w.find(s, last)
		if !ok || end == start {
			break
		}
		b.WriteString(s[last:start])
		b.WriteString(repl)
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
