//nolint:testpackage // exercises unexported pipeline stages
package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

func TestSplitSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"sentence boundaries", "First. Second! third? Fourth", []string{"First.", "Second! third?", "Fourth"}},
		{"blank line run", "a\n\n\nb", []string{"a", "b"}},
		{"punctuation then lowercase paragraph", "end. \n\nlower", []string{"end. ", "lower"}},
		{"abbreviation", "U.S. Army", []string{"U.S.", "Army"}},
		{"newline after period", "done.\nNext", []string{"done.", "Next"}},
		{"single newline kept", "one\ntwo", []string{"one\ntwo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitSegments(tt.in))
		})
	}
}

func TestDedupeSentences_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	got := dedupeSentences("The suspect was arrested at the scene! Witnesses called 911.\n\nThe suspect was arrested at the scene.")
	assert.Equal(t, "The suspect was arrested at the scene!\n\nWitnesses called 911.", got)
}

func TestRemoveBoilerplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		platform domain.PlatformKind
		in       string
		want     string
	}{
		{"civicplus breadcrumb line", domain.PlatformCivicPlus, "Home > Residents > Police\nBody", "\nBody"},
		{"civicplus share widget", domain.PlatformCivicPlus, "Share this page now", "  now"},
		{"crimemapping label line", domain.PlatformCrimeMapping, "Category:\nTheft", "\nTheft"},
		{"crimemapping view map", domain.PlatformCrimeMapping, "View map of incidents", "  of incidents"},
		{"nixle rates", domain.PlatformNixle, "Stay safe. Standard message rates apply", "Stay safe.  "},
		{"rave aliases nixle", domain.PlatformRave, "Sent via Rave", " "},
		{"pdf letterhead", domain.PlatformPDF, "FRESNO POLICE DEPARTMENT\nText", "\nText"},
		{"pdf stamps are case sensitive", domain.PlatformPDF, "confidential", "confidential"},
		{"default copyright", domain.PlatformUnknown, "© 2024 City of Example. All rights", " . All rights"},
		{"default nav word", domain.PlatformSocrata, "  Menu  \nData", "\nData"},
		{"default back to top", domain.PlatformRSS, "Back to top", ""},
		{"protected line untouched", domain.PlatformUnknown, "Home\nCall 916-555-0100 Home", "\nCall 916-555-0100 Home"},
		{"accented street line untouched", domain.PlatformUnknown, "Like us on Facebook, 9 Peñasco St", "Like us on Facebook, 9 Peñasco St"},
		{"no boundary before accented letter", domain.PlatformCrimeMapping, "View mapÉCOLE", "View mapÉCOLE"},
		{"boundary before accented word after space", domain.PlatformCrimeMapping, "View map École", "  École"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, removeBoilerplate(tt.in, tt.platform))
		})
	}
}

func TestRulesForAliases(t *testing.T) {
	t.Parallel()

	assert.Equal(t, rulesFor(domain.PlatformNixle), rulesFor(domain.PlatformRave))
	assert.Equal(t, rulesFor(domain.PlatformUnknown), rulesFor(domain.PlatformArcGIS))
	assert.Equal(t, rulesFor(domain.PlatformUnknown), rulesFor(domain.PlatformKind(42)))
}

func TestIsProtected(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"DR# 24-5512",
		"Report No. 2024-77",
		"Badge 4471",
		"ORI: CA0190000",
		"400 N. Broadway Blvd",
		"12/31/2023",
		"2023-12-31",
		"Dec. 31, 2023",
		"Sunday, December 31",
		"(916) 555-0100",
		"450 La Cañada Blvd",
		"Case #24-Ñ77",
	} {
		assert.True(t, isProtected(line), line)
	}
	assert.False(t, isProtected("Sign up for news alerts"))
	assert.False(t, isProtected("Filed 12/31/2023É"))
}

func TestWordRegexp(t *testing.T) {
	t.Parallel()

	re := mustCompileWord(`(?i)\bview\s+map\b`)

	tests := []struct {
		name  string
		in    string
		match bool
		want  string
	}{
		{"plain", "view map here", true, "# here"},
		{"accented letter after", "view mapé", false, "view mapé"},
		{"accented letter before", "éview map", false, "éview map"},
		{"second occurrence valid", "view mapé, view map", true, "view mapé, #"},
		{"every occurrence", "View map; view MAP", true, "#; #"},
		{"digits are word characters", "view map2", false, "view map2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.match, re.MatchString(tt.in))
			assert.Equal(t, tt.want, re.ReplaceAllLiteralString(tt.in, "#"))
		})
	}
}

func TestWordRegexp_NoBoundaries(t *testing.T) {
	t.Parallel()

	re := mustCompileWord(`[` + wordClass + `]+`)
	assert.Equal(t, "# #", re.ReplaceAllLiteralString("Cañada Peñasco", "#"))
}

func TestRemoveNonPrintable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ab\tc\nd", removeNonPrintable("a\u200bb\tc\n\x07d\u0378\ue000"))
}

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b\n\nc", normalizeWhitespace("  a \t b  \n\n\n\n  c  "))
	assert.Equal(t, "a\n\nb", normalizeWhitespace("a\n\nb"))
}
