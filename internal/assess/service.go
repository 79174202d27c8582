package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/trustlane/kestrel/internal/domain"
	"github.com/trustlane/kestrel/internal/feature"
	"github.com/trustlane/kestrel/internal/metrics"
	"github.com/trustlane/kestrel/internal/signal"
	"github.com/trustlane/kestrel/internal/ticket"
)

// Service orchestrates the assessment pipeline: extract, score, aggregate,
// decide, persist, then fire post-decision side effects through the
// injected ports.
type Service struct {
	cfg        *domain.Config
	extractor  *feature.Extractor
	registry   *signal.Registry
	aggregator *Aggregator
	policy     *Policy
	repo       domain.Repository
	cache      domain.Cache
	notifier   domain.Notifier
	clock      domain.Clock
	logger     *slog.Logger
}

// NewService wires the pipeline.
func NewService(
	cfg *domain.Config,
	extractor *feature.Extractor,
	registry *signal.Registry,
	repo domain.Repository,
	cache domain.Cache,
	notifier domain.Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		extractor:  extractor,
		registry:   registry,
		aggregator: NewAggregator(cfg),
		policy:     NewPolicy(),
		repo:       repo,
		cache:      cache,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "assess"),
	}
}

// Assess runs the full pipeline for one risk context. When the decision
// is manual review or block, the returned ticket was persisted atomically
// with the assessment. The whole call is bounded by the configured total
// timeout; scorers that miss it count as failures, which pushes the
// decision toward review rather than approval.
func (s *Service) Assess(ctx context.Context, rc *domain.RiskContext) (*domain.RiskAssessment, *domain.ReviewTicket, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Assessment.TotalTimeout)
	defer cancel()

	fv, err := s.extractor.Extract(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	extractMs := time.Since(start).Milliseconds()

	scoreStart := time.Now()
	signals, failures := s.runScorers(ctx, fv)
	scoreMs := time.Since(scoreStart).Milliseconds()

	assessment, err := s.aggregator.Aggregate(&AggregateInput{
		TenantID:        rc.TenantID,
		SubjectID:       rc.SubjectID,
		ContextID:       rc.ID,
		TraceID:         traceIDFromContext(ctx),
		Signals:         signals,
		Failures:        failures,
		TotalScorers:    s.registry.Len(),
		RegistryVersion: s.registry.Version(),
		StartTime:       start,
		ExtractMs:       extractMs,
		ScoreMs:         scoreMs,
	})
	if err != nil {
		return nil, nil, err
	}

	assessment.Action = s.policy.Decide(assessment, fv)

	var tk *domain.ReviewTicket
	if assessment.Action == domain.ActionAutoApprove {
		if err := s.repo.SaveAssessment(ctx, rc.TenantID, assessment); err != nil {
			return nil, nil, fmt.Errorf("failed to save assessment: %w", err)
		}
	} else {
		tk = ticket.New(assessment, s.cfg.SLAFor(rc.TenantID), s.clock)
		if err := s.repo.SaveAssessmentWithTicket(ctx, rc.TenantID, assessment, tk); err != nil {
			return nil, nil, fmt.Errorf("failed to save assessment with ticket: %w", err)
		}
	}

	s.afterDecision(ctx, assessment, tk)
	return assessment, tk, nil
}

// GetAssessment reads one assessment through the cache.
func (s *Service) GetAssessment(ctx context.Context, tenantID, id string) (*domain.RiskAssessment, error) {
	if cached, err := s.cache.GetAssessment(ctx, tenantID, id); err == nil && cached != nil {
		return cached, nil
	}

	a, err := s.repo.GetAssessment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetAssessment(ctx, tenantID, a, s.cfg.Cache.LocalTTL); err != nil {
		s.logger.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
	}
	return a, nil
}

// runScorers fans the vector out to every registered scorer with bounded
// concurrency. Each scorer gets its own deadline and panic containment;
// a failing scorer becomes a recorded failure, never an aborted pipeline.
func (s *Service) runScorers(ctx context.Context, fv *domain.FeatureVector) ([]domain.SignalScore, []*domain.ScorerFailure) {
	scorers := s.registry.Scorers()
	scores := make([]*domain.SignalScore, len(scorers))
	errs := make([]*domain.ScorerFailure, len(scorers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Assessment.MaxWorkers)

	for i, sc := range scorers {
		wg.Add(1)
		go func(idx int, sc signal.Scorer) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			scores[idx], errs[idx] = s.scoreOne(ctx, sc, fv)
		}(i, sc)
	}

	wg.Wait()

	signals := make([]domain.SignalScore, 0, len(scorers))
	failures := make([]*domain.ScorerFailure, 0)
	for i := range scorers {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			metrics.ScorerFailuresTotal.WithLabelValues(errs[i].Scorer).Inc()
			continue
		}
		signals = append(signals, *scores[i])
	}
	return signals, failures
}

type scoreResult struct {
	score domain.SignalScore
	err   error
}

// scoreOne runs a single scorer under its own timeout.
func (s *Service) scoreOne(ctx context.Context, sc signal.Scorer, fv *domain.FeatureVector) (*domain.SignalScore, *domain.ScorerFailure) {
	start := time.Now()

	sctx, cancel := context.WithTimeout(ctx, s.cfg.Assessment.ScorerTimeout)
	defer cancel()

	done := make(chan scoreResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scoreResult{err: fmt.Errorf("scorer panic: %v", r)}
			}
		}()
		score, err := s.registry.Score(sctx, sc, fv)
		done <- scoreResult{score: score, err: err}
	}()

	select {
	case <-sctx.Done():
		timeout := errors.Is(sctx.Err(), context.DeadlineExceeded)
		return nil, domain.NewScorerFailure(sc.Name(), sctx.Err(), timeout)
	case res := <-done:
		if res.err != nil {
			return nil, domain.NewScorerFailure(sc.Name(), res.err, false)
		}
		res.score.ProcessMs = time.Since(start).Milliseconds()
		return &res.score, nil
	}
}

// afterDecision fires the post-decision ports. Side effects never alter
// the decision; their failures are logged and dropped.
func (s *Service) afterDecision(ctx context.Context, a *domain.RiskAssessment, tk *domain.ReviewTicket) {
	metrics.AssessmentsTotal.WithLabelValues(string(a.Level), string(a.Action)).Inc()
	metrics.AssessmentDuration.Observe(float64(a.Metadata.TotalMs) / 1000)
	if a.Degraded {
		metrics.DegradedAssessmentsTotal.Inc()
	}
	if tk != nil {
		metrics.TicketsOpenedTotal.WithLabelValues(string(tk.Priority)).Inc()
	}

	if err := s.cache.SetAssessment(ctx, a.TenantID, a, s.cfg.Cache.LocalTTL); err != nil {
		s.logger.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
	}

	if err := s.notifier.NotifyDecision(ctx, a, tk); err != nil {
		s.logger.Warn("failed to notify decision", "assessment_id", a.ID, "error", err)
	}

	attrs := []any{
		"assessment_id", a.ID,
		"tenant_id", a.TenantID,
		"subject_id", a.SubjectID,
		"score", a.Score,
		"level", string(a.Level),
		"action", string(a.Action),
		"degraded", a.Degraded,
		"total_ms", a.Metadata.TotalMs,
	}
	if tk != nil {
		attrs = append(attrs, "ticket_id", tk.ID, "priority", string(tk.Priority))
	}
	s.logger.Info("assessment completed", attrs...)
}

// traceIDFromContext pulls the active span's trace ID so stored
// assessments stay correlatable with request traces. Empty when no
// tracer is configured.
func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
