// Package feature derives normalized feature vectors from risk contexts.
package feature

import (
	"context"
	"math"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
)

// Extractor turns a validated RiskContext into an immutable FeatureVector.
// Extraction is deterministic and side-effect free: the same context and
// configuration always produce the same vector.
type Extractor struct {
	cfg   *domain.Config
	clock domain.Clock
}

// NewExtractor creates a feature extractor.
func NewExtractor(cfg *domain.Config, clock domain.Clock) *Extractor {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Extractor{cfg: cfg, clock: clock}
}

// Extract validates the context and derives all features. Invalid input
// returns *domain.ValidationError.
func (e *Extractor) Extract(ctx context.Context, rc *domain.RiskContext) (*domain.FeatureVector, error) {
	if rc == nil {
		return nil, &domain.ValidationError{Field: "context", Reason: "required"}
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	occurred := rc.OccurredAt
	if occurred.IsZero() {
		occurred = e.clock.Now()
	}

	highValue := e.cfg.HighValueFor(rc.TenantID)
	values := map[domain.FeatureID]domain.FeatureValue{
		domain.FeatureAmount:       e.amountFeature(rc.Amount, highValue),
		domain.FeatureVelocity:     e.velocityFeature(rc.History, highValue),
		domain.FeatureFrequency:    e.frequencyFeature(rc.History, occurred),
		domain.FeatureNewDevice:    boolFeature(rc.NewDevice),
		domain.FeatureNewLocation:  boolFeature(rc.NewLocation),
		domain.FeatureUnusualTime:  e.unusualTimeFeature(occurred),
		domain.FeatureHighValue:    boolFeature(rc.Amount >= highValue),
		domain.FeatureRoundAmount:  boolFeature(roundAmount(rc.Amount)),
		domain.FeatureHistoryDepth: e.historyDepthFeature(rc.History),
	}

	return domain.NewFeatureVector(rc.TenantID, rc.SubjectID, occurred, values), nil
}

// amountFeature normalizes the amount against the tenant high-value threshold.
func (e *Extractor) amountFeature(amount, highValue float64) domain.FeatureValue {
	return domain.FeatureValue{Raw: amount, Norm: clamp(amount/highValue, 0, 1)}
}

// velocityFeature measures the amount spread (max minus min) across the
// bounded history. Fewer than two entries means no spread to measure.
func (e *Extractor) velocityFeature(history []domain.HistoryEntry, highValue float64) domain.FeatureValue {
	if len(history) < 2 {
		return domain.FeatureValue{}
	}
	min, max := history[0].Amount, history[0].Amount
	for _, h := range history[1:] {
		if h.Amount < min {
			min = h.Amount
		}
		if h.Amount > max {
			max = h.Amount
		}
	}
	spread := max - min
	return domain.FeatureValue{Raw: spread, Norm: clamp(spread/highValue, 0, 1)}
}

// frequencyFeature measures events per hour from the oldest history entry
// to the current event. Spans shorter than a minute are floored to avoid
// runaway rates on near-simultaneous events.
func (e *Extractor) frequencyFeature(history []domain.HistoryEntry, occurred time.Time) domain.FeatureValue {
	if len(history) == 0 {
		return domain.FeatureValue{}
	}
	oldest := history[0].OccurredAt
	for _, h := range history[1:] {
		if h.OccurredAt.Before(oldest) {
			oldest = h.OccurredAt
		}
	}
	span := occurred.Sub(oldest)
	if span < time.Minute {
		span = time.Minute
	}
	perHour := float64(len(history)) / span.Hours()
	return domain.FeatureValue{Raw: perHour, Norm: clamp(perHour/e.cfg.Assessment.MaxFrequencyPerHour, 0, 1)}
}

// unusualTimeFeature flags events outside the tenant daytime window.
func (e *Extractor) unusualTimeFeature(occurred time.Time) domain.FeatureValue {
	hour := occurred.UTC().Hour()
	unusual := hour < e.cfg.Assessment.DaytimeStartHour || hour >= e.cfg.Assessment.DaytimeEndHour
	return boolFeature(unusual)
}

// historyDepthFeature normalizes history length against the minimum sample
// count. History-driven scorers use it to derive confidence.
func (e *Extractor) historyDepthFeature(history []domain.HistoryEntry) domain.FeatureValue {
	depth := float64(len(history))
	min := float64(e.cfg.Assessment.MinHistorySamples)
	if min <= 0 {
		min = 1
	}
	return domain.FeatureValue{Raw: depth, Norm: clamp(depth/min, 0, 1)}
}

func boolFeature(b bool) domain.FeatureValue {
	if b {
		return domain.FeatureValue{Raw: 1, Norm: 1}
	}
	return domain.FeatureValue{}
}

// roundAmount reports whether the amount is a round multiple of 100.
func roundAmount(amount float64) bool {
	return amount >= 100 && math.Mod(amount, 100) == 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
