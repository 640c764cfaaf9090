package cleaner

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// rule is one boilerplate pattern. A line rule blanks the whole line when it
// matches; otherwise only the matched text is replaced with a single space.
type rule struct {
	re   *wordRegexp
	line bool
}

func sub(expr string) rule  { return rule{re: mustCompileWord(expr)} }
func line(expr string) rule { return rule{re: mustCompileWord(expr), line: true} }

var (
	civicPlusRules = []rule{
		sub(`(?i)\bShare\b.*?\bPrint\b.*?\bEmail\b`),
		sub(`(?i)\b(Share|Print|Email)\s+(this\s+)?(page|article|post)\b`),
		line(`(?i)^\s*(Home|Residents|Government|Services|Departments)\s*[/|>]\s*`),
		sub(`(?i)\bHome\s*[/|>]\s*(Residents|Government|Services|Departments)\b`),
		sub(`(?i)sign\s+up\s+for\s+(news|alerts?|notifications?|updates?)`),
		sub(`(?i)subscribe\s+to\s+(news|alerts?|notifications?|email\s+updates?)`),
		sub(`(?i)(this\s+site\s+uses?\s+cookies?|we\s+use\s+cookies?)[^.]*\.`),
		sub(`(?i)(accept\s+all\s+cookies?|cookie\s+policy|cookie\s+settings?)`),
		sub(`(?i)powered\s+by\s+civicplus`),
		sub(`(?i)civicplus\s+(cms|platform|technology)`),
	}

	crimeMappingRules = []rule{
		sub(`(?i)powered\s+by\s+crime\s*mapping`),
		sub(`(?i)\bview\s+map\b`),
		sub(`(?i)\b(download|export)\s+(report|data|csv|pdf)\b`),
		sub(`(?i)\bfilter\s+(by|results?|incidents?)\b`),
		line(`(?i)^\s*(Category|Type|Status|Zone|Beat|District|Address):\s*$`),
		line(`(?i)^\s*(Show|Hide)\s+(all|filters?|map|legend)\s*$`),
	}

	// Shared by Nixle and Rave, which send alerts from the same template.
	alertRules = []rule{
		sub(`(?i)sent\s+via\s+(nixle|rave)`),
		sub(`(?i)to\s+manage\s+your\s+notifications?`),
		sub(`(?i)\bunsubscribe\b[^.]*`),
		sub(`(?i)(standard\s+)?((sms|message|data)\s+rates?\s+(may\s+)?apply)`),
		sub(`(?i)reply\s+stop\s+to\s+(opt.?out|unsubscribe|cancel)`),
		sub(`(?i)reply\s+(stop|help|info)\b[^.]*`),
		sub(`(?i)you\s+(are\s+)?receiving\s+this\s+(message|alert|notification)`),
	}

	// Case sensitive: these stamps are printed in capitals.
	pdfRules = []rule{
		line(`^\s*CONFIDENTIAL\s*$`),
		line(`^\s*FOR\s+OFFICIAL\s+USE\s+ONLY\s*$`),
		line(`^\s*LAW\s+ENFORCEMENT\s+SENSITIVE\s*$`),
		line(`^\s*THIS\s+PAGE\s+(INTENTIONALLY\s+)?LEFT\s+BLANK\s*$`),
		line(`^\s*[A-Z\s]{10,}\s+(?:POLICE|SHERIFF|DEPARTMENT|DEPT\.?)\s*$`),
	}

	defaultRules = []rule{
		sub(`(?i)(this\s+site\s+uses?\s+cookies?|we\s+use\s+cookies?)[^.]*\.`),
		sub(`(?i)(accept\s+all\s+cookies?|cookie\s+policy)`),
		line(`(?i)^\s*(Home|About|Contact|Search|Menu|Navigation|Accessibility)\s*$`),
		sub(`(?i)follow\s+us\s+on\s+(facebook|twitter|instagram|x|youtube|linkedin)`),
		sub(`(?i)like\s+us\s+on\s+facebook`),
		sub(`(?i)©\s*\d{4}[^.\n]*`),
		sub(`(?i)copyright\s+\d{4}[^.\n]*`),
		line(`(?i)^\s*back\s+to\s+top\s*$`),
	}
)

// rulesFor returns the boilerplate table for a platform. Platforms without a
// dedicated table use the default rules.
func rulesFor(p domain.PlatformKind) []rule {
	switch p {
	case domain.PlatformCivicPlus:
		return civicPlusRules
	case domain.PlatformCrimeMapping:
		return crimeMappingRules
	case domain.PlatformNixle, domain.PlatformRave:
		return alertRules
	case domain.PlatformPDF:
		return pdfRules
	case domain.PlatformUnknown, domain.PlatformCitizenRIMS, domain.PlatformSocrata,
		domain.PlatformArcGIS, domain.PlatformRSS:
		return defaultRules
	default:
		return defaultRules
	}
}

var pdfHyphenBreak = regexp.MustCompile(`([\p{L}\p{N}_])-\n([\p{L}\p{N}_])`)

// joinHyphenated rejoins words split across lines by PDF extraction.
func joinHyphenated(text string) string {
	return pdfHyphenBreak.ReplaceAllString(text, "${1}${2}")
}

// removeBoilerplate applies the platform rules line by line. Lines carrying a
// protected identifier are passed through untouched.
func removeBoilerplate(text string, p domain.PlatformKind) string {
	if p == domain.PlatformPDF {
		text = joinHyphenated(text)
	}
	rules := rulesFor(p)

	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		if isProtected(ln) {
			continue
		}
		lines[i] = applyRules(ln, rules)
	}
	return strings.Join(lines, "\n")
}

func applyRules(ln string, rules []rule) string {
	for _, r := range rules {
		if r.line {
			if r.re.MatchString(ln) {
				return ""
			}
			continue
		}
		ln = r.re.ReplaceAllLiteralString(ln, " ")
	}
	return ln
}
