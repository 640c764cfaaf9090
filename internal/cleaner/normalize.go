package cleaner

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6"

// stripMarkup parses text as HTML and returns its text content, with blank
// lines around block elements and newlines for <br>. Script and style text is
// kept, as the quality score counts it as removable content. Parse failures
// fall back to the input unchanged.
func stripMarkup(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n\n")
		s.AfterHtml("\n\n")
	})
	return doc.Text()
}

// decodeEntities resolves HTML character references left after markup
// stripping, such as double-encoded ones.
func decodeEntities(text string) string {
	return html.UnescapeString(text)
}

var pageMarker = regexp.MustCompile(`(?i)^\s*page\s+\d+\s+of\s+\d+\s*$`)

// removePageMarkers blanks standalone "Page N of M" lines.
func removePageMarkers(text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		if pageMarker.MatchString(ln) {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

var printable = []*unicode.RangeTable{unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z}

// nonPrintable matches control, format, private-use and surrogate code points
// plus unassigned ones. Newline and tab are kept.
var nonPrintable = runes.Predicate(func(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return unicode.Is(unicode.C, r) || !unicode.IsOneOf(printable, r)
})

func removeNonPrintable(text string) string {
	out, _, err := transform.String(runes.Remove(nonPrintable), text)
	if err != nil {
		return text
	}
	return out
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	excessNewlines  = regexp.MustCompile(`\n{3,}`)
)

// normalizeWhitespace collapses spaces and tabs within lines, trims every
// line, squeezes three or more newlines to a single blank line and trims the
// result.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(ln, " "))
	}
	joined := excessNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(joined)
}
