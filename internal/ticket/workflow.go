// Package ticket implements the manual review workflow: ticket creation,
// assignment, decisions, and the SLA expiry sweep.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trustlane/kestrel/internal/domain"
	"github.com/trustlane/kestrel/internal/metrics"
)

// New builds a pending review ticket for an assessment. The caller
// persists it, atomically with the assessment.
func New(a *domain.RiskAssessment, sla domain.SLATable, clock domain.Clock) *domain.ReviewTicket {
	now := clock.Now()
	priority := domain.PriorityForLevel(a.Level)
	return &domain.ReviewTicket{
		ID:           uuid.New().String(),
		TenantID:     a.TenantID,
		AssessmentID: a.ID,
		SubjectID:    a.SubjectID,
		Status:       domain.TicketPending,
		Priority:     priority,
		DueAt:        now.Add(sla.Window(priority)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Workflow drives ticket lifecycle transitions. Every transition is a
// conditional update keyed on the status the caller observed, so two
// racing reviewers cannot both win.
type Workflow struct {
	cfg      *domain.Config
	repo     domain.Repository
	notifier domain.Notifier
	clock    domain.Clock
	logger   *slog.Logger
}

// NewWorkflow creates the review workflow.
func NewWorkflow(cfg *domain.Config, repo domain.Repository, notifier domain.Notifier, clock domain.Clock, logger *slog.Logger) *Workflow {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With("component", "ticket"),
	}
}

// Get returns one ticket.
func (w *Workflow) Get(ctx context.Context, tenantID, id string) (*domain.ReviewTicket, error) {
	return w.repo.GetTicket(ctx, tenantID, id)
}

// List returns tickets filtered by status. An empty status lists all.
func (w *Workflow) List(ctx context.Context, tenantID string, status domain.TicketStatus, limit int) ([]*domain.ReviewTicket, error) {
	return w.repo.ListTickets(ctx, tenantID, status, limit)
}

// Assign moves a ticket to assigned. Reassigning an already assigned
// ticket is allowed; terminal tickets reject the call.
func (w *Workflow) Assign(ctx context.Context, tenantID, id, assignee string) (*domain.ReviewTicket, error) {
	if assignee == "" {
		return nil, &domain.ValidationError{Field: "assignee", Reason: "required"}
	}

	t, err := w.repo.GetTicket(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := w.checkOpen(t); err != nil {
		return nil, err
	}

	now := w.clock.Now()
	update := &domain.TicketUpdate{
		Status:    domain.TicketAssigned,
		Assignee:  assignee,
		UpdatedAt: now,
	}
	if err := w.repo.UpdateTicket(ctx, tenantID, id, t.Status, update); err != nil {
		return nil, w.mapConflict(t, err)
	}

	metrics.TicketTransitionsTotal.WithLabelValues(string(domain.TicketAssigned)).Inc()
	w.logger.Info("ticket assigned", "ticket_id", id, "tenant_id", tenantID, "assignee", assignee)

	t.Status = domain.TicketAssigned
	t.Assignee = assignee
	t.UpdatedAt = now
	return t, nil
}

// Decide closes a ticket with a reviewer outcome. Rejections require a
// reason code from the fixed enumeration. The update is keyed on the
// status read here; losing the race yields *ConflictError, and a sweep
// that expired the ticket first yields *ExpiredTicketError.
func (w *Workflow) Decide(ctx context.Context, tenantID, id string, d *domain.TicketDecision) (*domain.ReviewTicket, error) {
	if d == nil || d.Reviewer == "" {
		return nil, &domain.ValidationError{Field: "reviewer", Reason: "required"}
	}

	var status domain.TicketStatus
	switch d.Outcome {
	case domain.OutcomeApproved:
		status = domain.TicketApproved
	case domain.OutcomeRejected:
		status = domain.TicketRejected
		if !domain.ValidReasonCode(d.ReasonCode) {
			return nil, &domain.ValidationError{Field: "reasonCode", Reason: "required for rejections"}
		}
	default:
		return nil, &domain.ValidationError{Field: "outcome", Reason: "must be approved or rejected"}
	}

	t, err := w.repo.GetTicket(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := w.checkOpen(t); err != nil {
		return nil, err
	}

	now := w.clock.Now()
	update := &domain.TicketUpdate{
		Status:     status,
		Reviewer:   d.Reviewer,
		Outcome:    d.Outcome,
		ReasonCode: d.ReasonCode,
		Notes:      d.Notes,
		DecidedAt:  &now,
		UpdatedAt:  now,
	}
	if err := w.repo.UpdateTicket(ctx, tenantID, id, t.Status, update); err != nil {
		return nil, w.mapConflict(t, err)
	}

	metrics.TicketTransitionsTotal.WithLabelValues(string(status)).Inc()
	w.logger.Info("ticket decided",
		"ticket_id", id,
		"tenant_id", tenantID,
		"outcome", string(d.Outcome),
		"reviewer", d.Reviewer)

	t.Status = status
	t.Reviewer = d.Reviewer
	t.Outcome = d.Outcome
	t.ReasonCode = d.ReasonCode
	t.Notes = d.Notes
	t.DecidedAt = &now
	t.UpdatedAt = now
	return t, nil
}

// Sweep expires every open ticket past its SLA deadline and emits one
// escalation alert per newly expired ticket. Tickets already terminal
// are untouched, which makes repeated sweeps idempotent.
func (w *Workflow) Sweep(ctx context.Context) (int, error) {
	now := w.clock.Now()
	due, err := w.repo.ListTicketsDue(ctx, now, w.cfg.Ticket.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list due tickets: %w", err)
	}

	expired := 0
	for _, t := range due {
		update := &domain.TicketUpdate{Status: domain.TicketExpired, UpdatedAt: now}
		if err := w.repo.UpdateTicket(ctx, t.TenantID, t.ID, t.Status, update); err != nil {
			// A conflict means a reviewer or another sweep got there first.
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				continue
			}
			w.logger.Warn("failed to expire ticket", "ticket_id", t.ID, "error", err)
			continue
		}

		expired++
		metrics.TicketsExpiredTotal.Inc()
		metrics.TicketTransitionsTotal.WithLabelValues(string(domain.TicketExpired)).Inc()
		w.logger.Info("ticket expired",
			"ticket_id", t.ID,
			"tenant_id", t.TenantID,
			"priority", string(t.Priority),
			"due_at", t.DueAt)

		// The alert is tied to winning the expiry update, so each ticket
		// escalates exactly once.
		alert := w.escalationAlert(t, now)
		if err := w.notifier.NotifyAlert(ctx, alert); err != nil {
			w.logger.Warn("failed to deliver escalation alert", "ticket_id", t.ID, "error", err)
		}
	}

	return expired, nil
}

// escalationAlert describes an SLA breach. Critical-priority tickets
// escalate at critical severity, the rest at warning.
func (w *Workflow) escalationAlert(t *domain.ReviewTicket, now time.Time) *domain.Alert {
	severity := domain.AlertWarning
	if t.Priority == domain.PriorityCritical {
		severity = domain.AlertCritical
	}
	return &domain.Alert{
		ID:        uuid.New().String(),
		TenantID:  t.TenantID,
		SubjectID: t.SubjectID,
		Type:      domain.AlertTicketExpired,
		Severity:  severity,
		Message:   fmt.Sprintf("review ticket %s breached its %s SLA", t.ID, t.Priority),
		CreatedAt: now,
	}
}

// checkOpen rejects transitions on terminal tickets.
func (w *Workflow) checkOpen(t *domain.ReviewTicket) error {
	if t.Status == domain.TicketExpired {
		return &domain.ExpiredTicketError{TicketID: t.ID, DueAt: t.DueAt}
	}
	if t.Status.IsTerminal() {
		return &domain.ConflictError{TicketID: t.ID, Expected: domain.TicketPending, Actual: t.Status}
	}
	return nil
}

// mapConflict converts a lost update race into the caller-facing error:
// a sweep that expired the ticket in between reads surfaces as
// *ExpiredTicketError, everything else stays a *ConflictError.
func (w *Workflow) mapConflict(t *domain.ReviewTicket, err error) error {
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		metrics.TicketConflictsTotal.Inc()
		if conflict.Actual == domain.TicketExpired {
			return &domain.ExpiredTicketError{TicketID: t.ID, DueAt: t.DueAt}
		}
	}
	return err
}
