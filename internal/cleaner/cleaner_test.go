package cleaner_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/cadence/internal/cleaner"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

func allPlatforms() []domain.PlatformKind {
	return append([]domain.PlatformKind{domain.PlatformUnknown}, domain.Platforms...)
}

func TestClean_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\t \n"} {
		got := cleaner.Clean(in, domain.PlatformCivicPlus)
		assert.Equal(t, domain.CleaningResult{}, got, "input %q", in)
	}
	assert.Equal(t, domain.CleaningResult{}, cleaner.CleanPlatform("", "nixle"))
}

func TestClean_CivicPlusBoilerplateKeepsContent(t *testing.T) {
	t.Parallel()

	raw := `<div class="breadcrumb">Home / Government / Police</div>
<p>On January 15, 2024, officers responded to a reported burglary at 1234 Main St. The suspect was located nearby and taken into custody.</p>
<p>Sign up for news alerts</p>
<footer>Powered by CivicPlus</footer>`

	got := cleaner.CleanPlatform(raw, "civicplus")

	assert.NotContains(t, got.CleanedText, "Powered by CivicPlus")
	assert.NotContains(t, got.CleanedText, "Sign up for news")
	assert.NotContains(t, got.CleanedText, "Home / Government")
	assert.Contains(t, got.CleanedText, "1234 Main St")
	assert.Contains(t, got.CleanedText, "January 15, 2024")
	assert.NotContains(t, got.CleanedText, "<p>")
	assert.GreaterOrEqual(t, got.QualityScore, 70)
}

func TestClean_RepeatedSentenceKeptOnce(t *testing.T) {
	t.Parallel()

	raw := "The suspect fled on foot. Officers searched the area. " +
		"The suspect fled on foot. A K9 unit assisted with the search."

	got := cleaner.Clean(raw, domain.PlatformUnknown)

	assert.Equal(t, 1, strings.Count(got.CleanedText, "The suspect fled on foot."))
	assert.Contains(t, got.CleanedText, "Officers searched the area.")
	assert.Contains(t, got.CleanedText, "A K9 unit assisted with the search.")
}

func TestClean_ProtectedLinesSurviveEveryPlatform(t *testing.T) {
	t.Parallel()

	protected := []string{
		"Share Print Email Case #24-001234",
		"Follow us on Facebook 1234 Main St",
		"Powered by CivicPlus CAD 2024-000123",
		"Reply STOP to opt out (805) 555-0100",
		"Sent via Nixle 805-555-0199",
		"CONFIDENTIAL report filed Monday, March 4",
		"Cookie policy updated 03/04/2024",
	}
	raw := "Powered by CivicPlus\n" + strings.Join(protected, "\n") + "\nBack to top"

	for _, p := range allPlatforms() {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()
			got := cleaner.Clean(raw, p)
			for _, line := range protected {
				assert.Contains(t, strings.Split(got.CleanedText, "\n"), line)
			}
		})
	}
}

func TestClean_PDF(t *testing.T) {
	t.Parallel()

	raw := "FRESNO POLICE DEPARTMENT\nCONFIDENTIAL\nThe investi-\ngation is ongoing.\nPage 2 of 5\nTHIS PAGE INTENTIONALLY LEFT BLANK"

	got := cleaner.Clean(raw, domain.PlatformPDF)
	assert.Equal(t, "The investigation is ongoing.", got.CleanedText)

	other := cleaner.Clean(raw, domain.PlatformUnknown)
	assert.Contains(t, other.CleanedText, "investi-\ngation")
	assert.Contains(t, other.CleanedText, "CONFIDENTIAL")
}

func TestClean_DecodesEntitiesBeforeStrippingControls(t *testing.T) {
	t.Parallel()

	got := cleaner.Clean("Officers &amp;amp; deputies detained the sus&amp;shy;pect", domain.PlatformUnknown)
	assert.Equal(t, "Officers & deputies detained the suspect", got.CleanedText)
}

func TestClean_PageMarkersCaseInsensitive(t *testing.T) {
	t.Parallel()

	got := cleaner.Clean("Shift summary follows\nPAGE 3 OF 4\nNo incidents\n  page 4 of 4  ", domain.PlatformRSS)
	assert.Equal(t, "Shift summary follows\n\nNo incidents", got.CleanedText)
}

func TestClean_MalformedHTMLDegrades(t *testing.T) {
	t.Parallel()

	got := cleaner.Clean("<div><p>Unclosed <b>tag & stray </i> text", domain.PlatformUnknown)
	assert.Contains(t, got.CleanedText, "Unclosed tag & stray text")
}

func TestClean_KeepsScriptTextAndSplitsBlocks(t *testing.T) {
	t.Parallel()

	raw := "<html><head><script>var x = 1;</script></head>" +
		"<body><h2>Wanted</h2><p>Suspect is armed</p><ul><li>Male</li><li>Age 30</li></ul>Line one<br>Line two</body></html>"

	got := cleaner.Clean(raw, domain.PlatformUnknown)
	assert.Contains(t, got.CleanedText, "var x = 1;")
	assert.True(t, strings.HasSuffix(got.CleanedText,
		"Wanted\n\nSuspect is armed\n\nMale\n\nAge 30\n\nLine one\nLine two"), got.CleanedText)
}

func TestClean_NonASCIIStreetLineKeepsBoilerplate(t *testing.T) {
	t.Parallel()

	line := "Follow us on Facebook for updates near 450 La Cañada Blvd"
	body := "Officers are asking residents to avoid the area until noon."
	got := cleaner.Clean(line+"\n\n"+body, domain.PlatformUnknown)
	assert.Equal(t, line+"\n\n"+body, got.CleanedText)
}

func TestClean_Deterministic(t *testing.T) {
	t.Parallel()

	raw := "<p>Arrest at 500 Oak Ave on 2024-02-01.</p><p>Arrest at 500 Oak Ave on 2024-02-01!</p>"
	first := cleaner.Clean(raw, domain.PlatformCivicPlus)
	for range 5 {
		require.Equal(t, first, cleaner.Clean(raw, domain.PlatformCivicPlus))
	}
	assert.Equal(t, "Arrest at 500 Oak Ave on 2024-02-01.", first.CleanedText)
}

func TestScore(t *testing.T) {
	t.Parallel()

	rich := "Officers responded to 1234 Main St on 01/15/2024 regarding case #24-0001."

	tests := []struct {
		name     string
		original string
		cleaned  string
		want     int
	}{
		{"empty original", "", "", 0},
		{"untouched rich text", rich, rich, 100},
		{"half removed with bonuses", rich + strings.Repeat("x", len(rich)), rich, 85},
		{"heavy removal", strings.Repeat("a", 1000), strings.Repeat("a", 100), 28},
		{"everything removed", strings.Repeat("a", 200), "", 20},
		{"short output capped", "Case #123 on 01/02/2024", "Case #123 on 01/02/2024", 30},
		{"growth is capped", "a", strings.Repeat("b", 60), 100},
		{"accented street gets address bonus", strings.Repeat("a", 128), strings.Repeat("a", 98) + " 12 Peñasco St", 95},
		{
			"date glued to accented word gets no bonus",
			"January 5, 2024ÉCOLE " + strings.Repeat("z", 59) + strings.Repeat("y", 48),
			"January 5, 2024ÉCOLE " + strings.Repeat("z", 59),
			70,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cleaner.Score(tt.original, tt.cleaned))
		})
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, cleaner.Similarity("Suspect ARRESTED", "suspect arrested"), 1e-9)
	assert.Greater(t, cleaner.Similarity("The suspect was arrested at the scene.", "The suspect was arrested at the scene!"), 0.85)
	assert.Less(t, cleaner.Similarity("Officers searched the area.", "A K9 unit assisted."), 0.85)
}
