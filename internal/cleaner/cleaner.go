// Package cleaner turns scraped HTML or text into normalized plain text and
// scores how much usable content survived.
//
// Stages run in a fixed order: markup stripping, boilerplate removal,
// near-duplicate sentence removal, entity decoding, page marker removal,
// non-printable removal and whitespace normalization. Cleaning never fails;
// malformed input degrades to best-effort text.
package cleaner

import (
	"strings"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// Clean normalizes rawText using the boilerplate rules for platform.
// Empty or whitespace-only input returns an empty result with score 0.
func Clean(rawText string, platform domain.PlatformKind) domain.CleaningResult {
	if strings.TrimSpace(rawText) == "" {
		return domain.CleaningResult{}
	}

	text := stripMarkup(rawText)
	text = removeBoilerplate(text, platform)
	text = dedupeSentences(text)
	text = decodeEntities(text)
	text = removePageMarkers(text)
	text = removeNonPrintable(text)
	text = normalizeWhitespace(text)

	return domain.CleaningResult{
		CleanedText:  text,
		QualityScore: Score(rawText, text),
	}
}

// CleanPlatform is Clean keyed by a registry platform_type string. Unknown or
// empty names use the default rules.
func CleanPlatform(rawText, platformType string) domain.CleaningResult {
	return Clean(rawText, domain.ParsePlatform(platformType))
}
