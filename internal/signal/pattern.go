package signal

import (
	"context"
	"fmt"

	"github.com/trustlane/kestrel/internal/domain"
)

// matchThreshold is the fixed fraction of indicators that must be
// satisfied before a pattern contributes. Not configurable.
const matchThreshold = 0.5

// Indicator is one condition inside a pattern: the feature's normalized
// value must reach Min. Zero Min means the flag must be fully set.
type Indicator struct {
	Feature domain.FeatureID `json:"feature"`
	Min     float64          `json:"min,omitempty"`
}

// PatternConfig defines a named indicator-set matcher.
type PatternConfig struct {
	Name       string      `json:"name"`
	RiskScore  float64     `json:"riskScore"`
	Indicators []Indicator `json:"indicators"`
}

type patternScorer struct {
	cfg PatternConfig
}

func (s *patternScorer) Name() string                    { return s.cfg.Name }
func (s *patternScorer) Category() domain.SignalCategory { return domain.CategoryPattern }

// Score matches when more than half of the indicators are satisfied. The
// contributed value is the pattern risk score weighted by the satisfied
// fraction; non-matches contribute 0 at full confidence.
func (s *patternScorer) Score(ctx context.Context, fv *domain.FeatureVector) (domain.SignalScore, error) {
	score := domain.SignalScore{
		Scorer:     s.cfg.Name,
		Category:   domain.CategoryPattern,
		Confidence: 1,
	}

	var matched []domain.FeatureID
	for _, ind := range s.cfg.Indicators {
		min := ind.Min
		if min <= 0 {
			min = 1
		}
		if fv.Norm(ind.Feature) >= min {
			matched = append(matched, ind.Feature)
		}
	}

	fraction := float64(len(matched)) / float64(len(s.cfg.Indicators))
	if fraction <= matchThreshold {
		return score, nil
	}

	score.Value = clamp(s.cfg.RiskScore*fraction, 0, 1)
	score.Matched = matched
	score.Detail = fmt.Sprintf("%d of %d indicators satisfied", len(matched), len(s.cfg.Indicators))
	return score, nil
}
