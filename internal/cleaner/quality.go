package cleaner

import (
	"strings"
	"unicode/utf8"
)

// Quality weights. The values are fixed for compatibility with scores already
// stored; do not tune them.
const (
	removalPenalty  = 80
	dateBonus       = 10
	caseNumberBonus = 10
	addressBonus    = 5
	maxScore        = 100
	shortTextChars  = 50
	shortTextCap    = 30
)

var (
	qualityDate = mustCompileWord(`(?i)\b(?:\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2}|` +
		`(?:` + monthAbbr + `)[a-z]*\.?\s+\d{1,2},\s+\d{4})\b`)
	qualityCaseNumber = mustCompileWord(`(?i)\b(CAD|DR|case|report\s+no\.?|incident)[#:\s]+[` + wordClass + `-]+`)
	qualityAddress    = mustCompileWord(`(?i)\b\d+\s+(?:[NSEW]\.?\s+)?[A-Za-z][` + wordClass + `\s]+\s+` + streetType + `\.?\b`)
)

// Score rates cleaned text against the original from 0 to 100. Heavy removal
// lowers the score; dates, case numbers and addresses raise it. Output under
// 50 characters never scores above 30.
func Score(original, cleaned string) int {
	origLen := utf8.RuneCountInString(original)
	if origLen == 0 {
		return 0
	}

	removal := float64(origLen-utf8.RuneCountInString(cleaned)) / float64(origLen)
	score := max(0, maxScore-int(removal*removalPenalty))

	if qualityDate.MatchString(cleaned) {
		score += dateBonus
	}
	if qualityCaseNumber.MatchString(cleaned) {
		score += caseNumberBonus
	}
	if qualityAddress.MatchString(cleaned) {
		score += addressBonus
	}
	score = min(maxScore, score)

	if utf8.RuneCountInString(strings.TrimSpace(cleaned)) < shortTextChars {
		score = min(score, shortTextCap)
	}
	return score
}
