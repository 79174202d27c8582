package feature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testContext(amount float64) *domain.RiskContext {
	return &domain.RiskContext{
		TenantID:   "tenant-1",
		SubjectID:  "subject-1",
		Type:       domain.EventPayment,
		Amount:     amount,
		Currency:   "USD",
		OccurredAt: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
	}
}

func TestExtract(t *testing.T) {
	cfg := domain.DefaultConfig()
	ex := NewExtractor(cfg, fixedClock{t: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)})

	t.Run("LowAmountNoFlags", func(t *testing.T) {
		fv, err := ex.Extract(context.Background(), testContext(50))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if norm := fv.Norm(domain.FeatureAmount); norm != 0.01 {
			t.Errorf("expected amount norm 0.01, got %f", norm)
		}
		for _, id := range []domain.FeatureID{
			domain.FeatureHighValue, domain.FeatureRoundAmount,
			domain.FeatureNewDevice, domain.FeatureNewLocation,
			domain.FeatureUnusualTime, domain.FeatureVelocity,
		} {
			if norm := fv.Norm(id); norm != 0 {
				t.Errorf("expected %s norm 0, got %f", id, norm)
			}
		}
	})

	t.Run("HighValueRoundAmount", func(t *testing.T) {
		fv, err := ex.Extract(context.Background(), testContext(8000))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if norm := fv.Norm(domain.FeatureAmount); norm != 1 {
			t.Errorf("expected amount norm clamped to 1, got %f", norm)
		}
		if fv.Norm(domain.FeatureHighValue) != 1 {
			t.Error("expected high_value flag set")
		}
		if fv.Norm(domain.FeatureRoundAmount) != 1 {
			t.Error("expected round_amount flag set")
		}
	})

	t.Run("SessionFlags", func(t *testing.T) {
		rc := testContext(200)
		rc.NewDevice = true
		rc.NewLocation = true
		fv, err := ex.Extract(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fv.Norm(domain.FeatureNewDevice) != 1 || fv.Norm(domain.FeatureNewLocation) != 1 {
			t.Error("expected session flags set")
		}
	})

	t.Run("UnusualTime", func(t *testing.T) {
		rc := testContext(200)
		rc.OccurredAt = time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
		fv, err := ex.Extract(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fv.Norm(domain.FeatureUnusualTime) != 1 {
			t.Error("expected unusual_time flag for 3am event")
		}
	})

	t.Run("VelocitySpread", func(t *testing.T) {
		rc := testContext(200)
		base := rc.OccurredAt.Add(-time.Hour)
		rc.History = []domain.HistoryEntry{
			{Amount: 100, OccurredAt: base},
			{Amount: 2600, OccurredAt: base.Add(10 * time.Minute)},
			{Amount: 500, OccurredAt: base.Add(20 * time.Minute)},
		}
		fv, err := ex.Extract(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if raw := fv.Raw(domain.FeatureVelocity); raw != 2500 {
			t.Errorf("expected velocity raw 2500, got %f", raw)
		}
		if norm := fv.Norm(domain.FeatureVelocity); norm != 0.5 {
			t.Errorf("expected velocity norm 0.5, got %f", norm)
		}
	})

	t.Run("Frequency", func(t *testing.T) {
		rc := testContext(200)
		base := rc.OccurredAt.Add(-time.Hour)
		for i := 0; i < 10; i++ {
			rc.History = append(rc.History, domain.HistoryEntry{
				Amount:     100,
				OccurredAt: base.Add(time.Duration(i) * time.Minute),
			})
		}
		fv, err := ex.Extract(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 10 events across one hour
		if raw := fv.Raw(domain.FeatureFrequency); raw != 10 {
			t.Errorf("expected frequency raw 10, got %f", raw)
		}
		if norm := fv.Norm(domain.FeatureFrequency); norm != 0.5 {
			t.Errorf("expected frequency norm 0.5, got %f", norm)
		}
	})

	t.Run("HistoryDepth", func(t *testing.T) {
		rc := testContext(200)
		base := rc.OccurredAt.Add(-time.Hour)
		for i := 0; i < 5; i++ {
			rc.History = append(rc.History, domain.HistoryEntry{Amount: 100, OccurredAt: base})
		}
		fv, err := ex.Extract(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if norm := fv.Norm(domain.FeatureHistoryDepth); norm != 1 {
			t.Errorf("expected history_depth norm 1 at min samples, got %f", norm)
		}
	})

	t.Run("DefaultOccurredAt", func(t *testing.T) {
		rc := testContext(200)
		rc.OccurredAt = time.Time{}
		fv, err := ex.Extract(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
		if !fv.ObservedAt.Equal(want) {
			t.Errorf("expected clock fallback %v, got %v", want, fv.ObservedAt)
		}
	})

	t.Run("TenantThresholdOverride", func(t *testing.T) {
		override := domain.DefaultConfig()
		override.Tenants = map[string]domain.TenantConfig{
			"tenant-1": {HighValueThreshold: 1000},
		}
		ex := NewExtractor(override, fixedClock{t: time.Now()})
		fv, err := ex.Extract(context.Background(), testContext(1500))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fv.Norm(domain.FeatureHighValue) != 1 {
			t.Error("expected high_value for amount above tenant threshold")
		}
	})
}

func TestExtractValidation(t *testing.T) {
	ex := NewExtractor(domain.DefaultConfig(), nil)

	cases := []struct {
		name  string
		rc    *domain.RiskContext
		field string
	}{
		{"MissingTenant", &domain.RiskContext{SubjectID: "s", Type: domain.EventPayment, Amount: 10}, "tenantId"},
		{"MissingSubject", &domain.RiskContext{TenantID: "t", Type: domain.EventPayment, Amount: 10}, "subjectId"},
		{"ZeroAmountPayment", &domain.RiskContext{TenantID: "t", SubjectID: "s", Type: domain.EventPayment}, "amount"},
		{"UnknownType", &domain.RiskContext{TenantID: "t", SubjectID: "s", Type: "transfer"}, "type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ex.Extract(context.Background(), tc.rc)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}

	t.Run("ActivityWithoutAmount", func(t *testing.T) {
		rc := &domain.RiskContext{TenantID: "t", SubjectID: "s", Type: domain.EventAccountActivity}
		if _, err := ex.Extract(context.Background(), rc); err != nil {
			t.Errorf("expected activity event without amount to pass, got %v", err)
		}
	})
}

func TestExtractDeterministic(t *testing.T) {
	ex := NewExtractor(domain.DefaultConfig(), nil)
	rc := testContext(750)
	rc.History = []domain.HistoryEntry{
		{Amount: 100, OccurredAt: rc.OccurredAt.Add(-time.Hour)},
		{Amount: 900, OccurredAt: rc.OccurredAt.Add(-30 * time.Minute)},
	}

	first, err := ex.Extract(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ex.Extract(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for id, v := range first.Values() {
		if got := second.Values()[id]; got != v {
			t.Errorf("feature %s differs between runs: %v vs %v", id, v, got)
		}
	}
}
