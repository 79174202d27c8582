// Package assess combines scorer signals into risk assessments and maps
// them to decisions.
package assess

import (
	"time"

	"github.com/google/uuid"

	"github.com/trustlane/kestrel/internal/domain"
)

// EngineVersion is stamped on every assessment.
const EngineVersion = "kestrel-1.0"

// Aggregator folds signals into a single score using the tenant's
// category weights. Each signal contributes value * categoryWeight *
// confidence; zero-confidence signals drop out entirely.
type Aggregator struct {
	cfg *domain.Config
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg *domain.Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// AggregateInput carries everything collected during scoring.
type AggregateInput struct {
	TenantID  string
	SubjectID string
	ContextID string
	TraceID   string

	Signals  []domain.SignalScore
	Failures []*domain.ScorerFailure

	// TotalScorers is the registry size, for the degraded-mode threshold.
	TotalScorers    int
	RegistryVersion string

	StartTime time.Time
	ExtractMs int64
	ScoreMs   int64
}

// Aggregate produces the assessment. When every scorer failed there is
// nothing to aggregate and the call fails with *DegradedServiceError;
// callers must treat that as requiring review, never as approval.
func (ag *Aggregator) Aggregate(input *AggregateInput) (*domain.RiskAssessment, error) {
	failed := len(input.Failures)
	if len(input.Signals) == 0 {
		return nil, &domain.DegradedServiceError{Failed: failed, Total: input.TotalScorers}
	}

	weights := ag.cfg.WeightsFor(input.TenantID)

	var weighted, total float64
	for _, s := range input.Signals {
		w := weights[s.Category] * s.Confidence
		if w <= 0 {
			continue
		}
		weighted += s.Value * w
		total += w
	}

	score := 0.0
	if total > 0 {
		score = clamp(weighted/total, 0, 1)
	}

	// More than half of the scorers failing marks the assessment degraded.
	// Signals that all abstained (zero aggregate weight) leave no basis to
	// judge, which is treated the same way.
	degraded := failed*2 > input.TotalScorers || total == 0

	failures := make([]domain.ScorerFailure, 0, failed)
	for _, f := range input.Failures {
		failures = append(failures, *f)
	}

	return &domain.RiskAssessment{
		ID:        uuid.New().String(),
		TenantID:  input.TenantID,
		SubjectID: input.SubjectID,
		ContextID: input.ContextID,
		Score:     score,
		Level:     domain.LevelForScore(score),
		CreatedAt: time.Now().UTC(),
		Signals:   input.Signals,
		Failures:  failures,
		Degraded:  degraded,
		Metadata: domain.AssessmentMetadata{
			TraceID:         input.TraceID,
			ExtractMs:       input.ExtractMs,
			ScoreMs:         input.ScoreMs,
			TotalMs:         time.Since(input.StartTime).Milliseconds(),
			ScorersRun:      input.TotalScorers,
			ScorersFailed:   failed,
			EngineVersion:   EngineVersion,
			RegistryVersion: input.RegistryVersion,
		},
	}, nil
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
