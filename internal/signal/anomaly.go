package signal

import (
	"context"
	"fmt"

	"github.com/trustlane/kestrel/internal/domain"
)

// Severity bands for anomaly scores above sensitivity.
const (
	severityMajorThreshold    = 0.85
	severityCriticalThreshold = 0.95
)

// AnomalyConfig defines a single-feature anomaly detector. The detector
// stays silent (value 0) until the feature exceeds the sensitivity.
type AnomalyConfig struct {
	Name        string           `json:"name"`
	Feature     domain.FeatureID `json:"feature"`
	Sensitivity float64          `json:"sensitivity"`

	// Confidence names a feature whose normalized value becomes the
	// signal confidence. Empty means full confidence.
	Confidence domain.FeatureID `json:"confidence,omitempty"`
}

type anomalyScorer struct {
	cfg AnomalyConfig
}

func (s *anomalyScorer) Name() string                    { return s.cfg.Name }
func (s *anomalyScorer) Category() domain.SignalCategory { return domain.CategoryAnomaly }

// Score emits an anomaly only when the watched feature exceeds the
// configured sensitivity; below it the signal value is 0.
func (s *anomalyScorer) Score(ctx context.Context, fv *domain.FeatureVector) (domain.SignalScore, error) {
	score := domain.SignalScore{
		Scorer:     s.cfg.Name,
		Category:   domain.CategoryAnomaly,
		Confidence: confidenceFor(fv, s.cfg.Confidence),
	}

	observed := fv.Norm(s.cfg.Feature)
	if observed <= s.cfg.Sensitivity {
		return score, nil
	}

	score.Value = clamp(observed, 0, 1)
	score.Severity = severityFor(score.Value)
	score.Detail = fmt.Sprintf("%s at %.2f exceeds sensitivity %.2f", s.cfg.Feature, observed, s.cfg.Sensitivity)
	return score, nil
}

func severityFor(value float64) domain.AnomalySeverity {
	switch {
	case value >= severityCriticalThreshold:
		return domain.SeverityCritical
	case value >= severityMajorThreshold:
		return domain.SeverityMajor
	default:
		return domain.SeverityMinor
	}
}
