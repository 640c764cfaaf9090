package classifier

import (
	"math"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

type tally struct {
	typ    domain.DocumentType
	total  float64
	boosts []float64
}

// Combine folds signals, given in producer order, onto a base confidence.
//
// Boosts are summed per type. The type with the highest total wins; on a tie
// the type first voted for by a later producer wins. Confidence is base plus
// the winning type's boosts, clamped to [0, 1]. ok is false when signals is
// empty.
func Combine(base float64, signals []Signal) (result domain.ClassificationResult, ok bool) {
	if len(signals) == 0 {
		return domain.ClassificationResult{}, false
	}

	var tallies []*tally
	index := make(map[domain.DocumentType]*tally)
	for _, s := range signals {
		t, found := index[s.Type]
		if !found {
			t = &tally{typ: s.Type}
			index[s.Type] = t
			tallies = append(tallies, t)
		}
		t.total += s.Boost
		t.boosts = append(t.boosts, s.Boost)
	}

	winner := tallies[0]
	for _, t := range tallies[1:] {
		if t.total >= winner.total {
			winner = t
		}
	}

	confidence := base
	for _, b := range winner.boosts {
		confidence += b
	}
	return domain.ClassificationResult{DocumentType: winner.typ, Confidence: clamp(confidence)}, true
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
