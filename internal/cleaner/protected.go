package cleaner

const (
	monthNames = `January|February|March|April|May|June|July|August|September|October|November|December`
	monthAbbr  = `Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec`
	streetType = `(?:St|Ave|Blvd|Dr|Rd|Ln|Way|Ct|Pl|Hwy|Fwy|Pkwy|Cir|Ter|Loop)`
)

// protectedPatterns match identifiers that boilerplate removal must never touch.
var protectedPatterns = []*wordRegexp{
	// case, CAD, DR, report, badge and ORI numbers
	mustCompileWord(`(?i)\b(CAD|DR|case|report\s+no\.?|badge|ORI)[#:\s]+[` + wordClass + `-]+`),
	mustCompileWord(`(?i)\d+\s+(?:[NSEW]\.?\s+)?[A-Za-z][` + wordClass + `\s]+\s+` + streetType + `\.?\b`),
	mustCompileWord(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
	mustCompileWord(`\b\d{4}-\d{2}-\d{2}\b`),
	mustCompileWord(`(?i)\b(?:` + monthNames + `|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+\d{1,2},\s+\d{4}\b`),
	mustCompileWord(`(?i)\b(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),?\s+` +
		`(?:` + monthNames + `|` + monthAbbr + `)\.?\s+\d{1,2}`),
	mustCompileWord(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`),
	mustCompileWord(`\(\d{3}\)\s*\d{3}[-.\s]\d{4}`),
}

// isProtected reports whether line contains a protected identifier.
func isProtected(line string) bool {
	for _, re := range protectedPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
