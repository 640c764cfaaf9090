package classifier

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// Signal is one producer's vote: a type and how much it boosts confidence.
type Signal struct {
	Source string              `json:"source"`
	Type   domain.DocumentType `json:"document_type"`
	Boost  float64             `json:"boost"`
}

// SignalProducer inspects a document and optionally votes for a type.
type SignalProducer interface {
	Name() string
	Produce(doc *domain.RawDocument) (Signal, bool)
}

// URLSignal votes from the document URL path.
type URLSignal struct{}

func (URLSignal) Name() string { return "url" }

// Produce returns the first matching URL rule.
func (URLSignal) Produce(doc *domain.RawDocument) (Signal, bool) {
	lowered := strings.ToLower(doc.URL)
	for _, r := range urlRules {
		if r.re.MatchString(lowered) {
			return Signal{Source: "url", Type: r.typ, Boost: r.boost}, true
		}
	}
	return Signal{}, false
}

// KeywordSignal votes from phrases in the title and the start of the body.
// Matching runs all keyword sets through one Aho-Corasick automaton.
type KeywordSignal struct {
	matcher *ahocorasick.Matcher
	// owner[i] is the index into keywordSets for dictionary word i.
	owner []int
}

// NewKeywordSignal builds the automaton over every keyword set.
func NewKeywordSignal() *KeywordSignal {
	var (
		dict  []string
		owner []int
	)
	for i, set := range keywordSets {
		for _, kw := range set.keywords {
			dict = append(dict, kw)
			owner = append(owner, i)
		}
	}
	return &KeywordSignal{matcher: ahocorasick.NewStringMatcher(dict), owner: owner}
}

func (*KeywordSignal) Name() string { return "keyword" }

// Produce counts distinct keywords per type in the excerpt. Boost is 0.1 per
// keyword, capped at 0.3; the highest boost wins and ties keep the earlier type.
func (k *KeywordSignal) Produce(doc *domain.RawDocument) (Signal, bool) {
	excerpt := strings.ToLower(doc.Title + " " + firstRunes(doc.RawText, keywordExcerptRunes))

	counts := make([]int, len(keywordSets))
	seen := make(map[int]bool)
	for _, hit := range k.matcher.MatchThreadSafe([]byte(excerpt)) {
		if hit < 0 || hit >= len(k.owner) || seen[hit] {
			continue
		}
		seen[hit] = true
		counts[k.owner[hit]]++
	}

	best, bestBoost := -1, 0.0
	for i, n := range counts {
		if n == 0 {
			continue
		}
		if boost := keywordBoost(n); boost > bestBoost {
			best, bestBoost = i, boost
		}
	}
	if best < 0 {
		return Signal{}, false
	}
	return Signal{Source: "keyword", Type: keywordSets[best].typ, Boost: bestBoost}, true
}

func keywordBoost(matches int) float64 {
	return min(float64(matches)*keywordStep, keywordBoostCap)
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
