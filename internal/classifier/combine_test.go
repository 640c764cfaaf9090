package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

func TestCombine(t *testing.T) {
	t.Parallel()

	url := func(typ domain.DocumentType, b float64) classifier.Signal {
		return classifier.Signal{Source: "url", Type: typ, Boost: b}
	}
	kw := func(typ domain.DocumentType, b float64) classifier.Signal {
		return classifier.Signal{Source: "keyword", Type: typ, Boost: b}
	}

	tests := []struct {
		name     string
		base     float64
		signals  []classifier.Signal
		wantType domain.DocumentType
		wantConf float64
	}{
		{"single", 0.5, []classifier.Signal{url(domain.ArrestLog, 0.25)}, domain.ArrestLog, 0.75},
		{"same type sums", 0.7, []classifier.Signal{url(domain.ArrestLog, 0.25), kw(domain.ArrestLog, 0.3)}, domain.ArrestLog, 1.0},
		{"larger boost wins", 0.5, []classifier.Signal{url(domain.CommunityAlert, 0.2), kw(domain.IncidentReport, 0.1)}, domain.CommunityAlert, 0.7},
		{"later producer wins tie", 0.5, []classifier.Signal{url(domain.PressRelease, 0.2), kw(domain.ArrestLog, 0.2)}, domain.ArrestLog, 0.7},
		{"clamped high", 0.85, []classifier.Signal{url(domain.ArrestLog, 0.25), kw(domain.ArrestLog, 0.3)}, domain.ArrestLog, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := classifier.Combine(tt.base, tt.signals)
			assert.True(t, ok)
			assert.Equal(t, tt.wantType, got.DocumentType)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}

	_, ok := classifier.Combine(0.5, nil)
	assert.False(t, ok)
}
