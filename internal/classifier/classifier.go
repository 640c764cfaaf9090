// Package classifier assigns a canonical document type and a confidence to a
// raw document using deterministic rules: a platform prior, URL patterns,
// keyword phrases and the fetcher's type hint.
package classifier

import (
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// Method names the rule that decided a classification.
type Method string

const (
	MethodPlatformPrior   Method = "platform_prior"
	MethodSignals         Method = "signals"
	MethodPlatformDefault Method = "platform_default"
	MethodLegacyHint      Method = "legacy_hint"
	MethodFallback        Method = "fallback"
)

// Decision is a classification with the evidence behind it.
type Decision struct {
	domain.ClassificationResult
	Method  Method   `json:"method"`
	Prior   *Prior   `json:"prior,omitempty"`
	Signals []Signal `json:"signals,omitempty"`
}

// Classifier is safe for concurrent use.
type Classifier struct {
	producers []SignalProducer
}

// New returns a classifier evaluating the URL signal then the keyword signal.
func New() *Classifier {
	return NewWithProducers(URLSignal{}, NewKeywordSignal())
}

// NewWithProducers uses the given producers in order. Later producers win
// boost ties.
func NewWithProducers(producers ...SignalProducer) *Classifier {
	return &Classifier{producers: producers}
}

// Classify returns the document type and confidence for doc. platform may be
// PlatformUnknown when the source platform is absent or unrecognised.
func (c *Classifier) Classify(doc *domain.RawDocument, platform domain.PlatformKind) domain.ClassificationResult {
	return c.Decide(doc, platform).ClassificationResult
}

// Decide is Classify with the evidence attached.
func (c *Classifier) Decide(doc *domain.RawDocument, platform domain.PlatformKind) Decision {
	hint, hintOK := NormalizeHint(doc.DocumentTypeHint)

	base := neutralBase
	prior, hasPrior := PlatformPrior(platform)
	var priorRef *Prior
	if hasPrior {
		p := prior
		priorRef = &p
		if prior.Confidence >= groundTruthConfidence {
			return Decision{
				ClassificationResult: result(prior.Type, prior.Confidence),
				Method:               MethodPlatformPrior,
				Prior:                priorRef,
			}
		}
		base = prior.Confidence
	}

	signals := c.collect(doc)
	if res, ok := Combine(base, signals); ok {
		return Decision{ClassificationResult: res, Method: MethodSignals, Prior: priorRef, Signals: signals}
	}

	switch {
	case hasPrior:
		return Decision{ClassificationResult: result(prior.Type, prior.Confidence), Method: MethodPlatformDefault, Prior: priorRef}
	case hintOK:
		return Decision{ClassificationResult: result(hint, legacyHintConfidence), Method: MethodLegacyHint}
	default:
		return Decision{ClassificationResult: result(fallbackType, fallbackConfidence), Method: MethodFallback}
	}
}

func (c *Classifier) collect(doc *domain.RawDocument) []Signal {
	var signals []Signal
	for _, p := range c.producers {
		if s, ok := p.Produce(doc); ok {
			signals = append(signals, s)
		}
	}
	return signals
}

func result(t domain.DocumentType, confidence float64) domain.ClassificationResult {
	return domain.ClassificationResult{DocumentType: t, Confidence: clamp(confidence)}
}
