package assess

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
)

func signalOf(category domain.SignalCategory, value, confidence float64) domain.SignalScore {
	return domain.SignalScore{
		Scorer:     string(category) + "-scorer",
		Category:   category,
		Value:      value,
		Confidence: confidence,
	}
}

func TestAggregate(t *testing.T) {
	ag := NewAggregator(domain.DefaultConfig())

	t.Run("ConfidenceWeighting", func(t *testing.T) {
		input := &AggregateInput{
			TenantID:     "tenant-1",
			SubjectID:    "subject-1",
			TotalScorers: 2,
			StartTime:    time.Now(),
			Signals: []domain.SignalScore{
				signalOf(domain.CategoryHeuristic, 1.0, 1.0),
				signalOf(domain.CategoryAnomaly, 0.0, 0.5),
			},
		}
		a, err := ag.Aggregate(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// (1.0*0.35*1.0 + 0.0*0.25*0.5) / (0.35 + 0.125)
		want := 0.35 / 0.475
		if math.Abs(a.Score-want) > 1e-9 {
			t.Errorf("expected score %f, got %f", want, a.Score)
		}
	})

	t.Run("ZeroConfidenceExcluded", func(t *testing.T) {
		input := &AggregateInput{
			TenantID:     "tenant-1",
			TotalScorers: 2,
			StartTime:    time.Now(),
			Signals: []domain.SignalScore{
				signalOf(domain.CategoryHeuristic, 0.9, 1.0),
				signalOf(domain.CategoryHeuristic, 0.0, 0.0),
			},
		}
		a, err := ag.Aggregate(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(a.Score-0.9) > 1e-9 {
			t.Errorf("expected abstaining signal excluded, score 0.9, got %f", a.Score)
		}
	})

	t.Run("AllFailedIsDegradedService", func(t *testing.T) {
		input := &AggregateInput{
			TenantID:     "tenant-1",
			TotalScorers: 3,
			StartTime:    time.Now(),
			Failures: []*domain.ScorerFailure{
				domain.NewScorerFailure("a", errors.New("boom"), false),
				domain.NewScorerFailure("b", errors.New("boom"), false),
				domain.NewScorerFailure("c", errors.New("boom"), true),
			},
		}
		_, err := ag.Aggregate(input)
		var degraded *domain.DegradedServiceError
		if !errors.As(err, &degraded) {
			t.Fatalf("expected DegradedServiceError, got %v", err)
		}
		if degraded.Failed != 3 || degraded.Total != 3 {
			t.Errorf("expected 3/3 failed, got %d/%d", degraded.Failed, degraded.Total)
		}
	})

	t.Run("MajorityFailuresMarkDegraded", func(t *testing.T) {
		input := &AggregateInput{
			TenantID:     "tenant-1",
			TotalScorers: 3,
			StartTime:    time.Now(),
			Signals:      []domain.SignalScore{signalOf(domain.CategoryHeuristic, 0.2, 1.0)},
			Failures: []*domain.ScorerFailure{
				domain.NewScorerFailure("a", errors.New("boom"), false),
				domain.NewScorerFailure("b", errors.New("boom"), false),
			},
		}
		a, err := ag.Aggregate(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !a.Degraded {
			t.Error("expected degraded assessment with 2 of 3 scorers failed")
		}
		if a.Metadata.ScorersFailed != 2 {
			t.Errorf("expected 2 failures in metadata, got %d", a.Metadata.ScorersFailed)
		}
	})

	t.Run("MinorityFailuresNotDegraded", func(t *testing.T) {
		input := &AggregateInput{
			TenantID:     "tenant-1",
			TotalScorers: 3,
			StartTime:    time.Now(),
			Signals: []domain.SignalScore{
				signalOf(domain.CategoryHeuristic, 0.2, 1.0),
				signalOf(domain.CategoryAnomaly, 0.1, 1.0),
			},
			Failures: []*domain.ScorerFailure{
				domain.NewScorerFailure("a", errors.New("boom"), false),
			},
		}
		a, err := ag.Aggregate(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Degraded {
			t.Error("expected non-degraded assessment with 1 of 3 scorers failed")
		}
	})

	t.Run("AllAbstainedIsDegraded", func(t *testing.T) {
		input := &AggregateInput{
			TenantID:     "tenant-1",
			TotalScorers: 1,
			StartTime:    time.Now(),
			Signals:      []domain.SignalScore{signalOf(domain.CategoryHeuristic, 0.7, 0.0)},
		}
		a, err := ag.Aggregate(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Score != 0 || !a.Degraded {
			t.Errorf("expected score 0 and degraded when every signal abstains, got %f degraded=%v", a.Score, a.Degraded)
		}
	})

	t.Run("TenantWeightOverride", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		cfg.Tenants = map[string]domain.TenantConfig{
			"tenant-1": {CategoryWeights: map[domain.SignalCategory]float64{
				domain.CategoryHeuristic: 1.0,
			}},
		}
		ag := NewAggregator(cfg)
		input := &AggregateInput{
			TenantID:     "tenant-1",
			TotalScorers: 2,
			StartTime:    time.Now(),
			Signals: []domain.SignalScore{
				signalOf(domain.CategoryHeuristic, 0.6, 1.0),
				signalOf(domain.CategoryAnomaly, 1.0, 1.0),
			},
		}
		a, err := ag.Aggregate(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// anomaly weight resolves to 0 for this tenant
		if math.Abs(a.Score-0.6) > 1e-9 {
			t.Errorf("expected score 0.6 under tenant weights, got %f", a.Score)
		}
	})
}

func TestLevelForScore(t *testing.T) {
	cases := []struct {
		score float64
		level domain.RiskLevel
	}{
		{0.0, domain.LevelMinimal},
		{0.39, domain.LevelMinimal},
		{0.4, domain.LevelLow},
		{0.59, domain.LevelLow},
		{0.6, domain.LevelMedium},
		{0.79, domain.LevelMedium},
		{0.8, domain.LevelHigh},
		{1.0, domain.LevelHigh},
	}
	for _, tc := range cases {
		if got := domain.LevelForScore(tc.score); got != tc.level {
			t.Errorf("score %f: expected %s, got %s", tc.score, tc.level, got)
		}
	}
}

func TestPolicy(t *testing.T) {
	p := NewPolicy()

	vectorWith := func(newDevice bool) *domain.FeatureVector {
		values := map[domain.FeatureID]domain.FeatureValue{}
		if newDevice {
			values[domain.FeatureNewDevice] = domain.FeatureValue{Raw: 1, Norm: 1}
		}
		return domain.NewFeatureVector("t", "s", time.Now(), values)
	}

	cases := []struct {
		name      string
		level     domain.RiskLevel
		degraded  bool
		newDevice bool
		want      domain.Action
	}{
		{"MinimalApproves", domain.LevelMinimal, false, false, domain.ActionAutoApprove},
		{"LowApproves", domain.LevelLow, false, false, domain.ActionAutoApprove},
		{"MediumReviews", domain.LevelMedium, false, false, domain.ActionManualReview},
		{"HighBlocks", domain.LevelHigh, false, false, domain.ActionBlock},
		{"NewDeviceEscalatesMinimal", domain.LevelMinimal, false, true, domain.ActionManualReview},
		{"DegradedEscalatesLow", domain.LevelLow, true, false, domain.ActionManualReview},
		{"NewDeviceEscalatesMedium", domain.LevelMedium, false, true, domain.ActionBlock},
		{"BlockStaysBlock", domain.LevelHigh, true, true, domain.ActionBlock},
		{"BothIndicatorsEscalateOnce", domain.LevelMinimal, true, true, domain.ActionManualReview},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &domain.RiskAssessment{Level: tc.level, Degraded: tc.degraded}
			if got := p.Decide(a, vectorWith(tc.newDevice)); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
