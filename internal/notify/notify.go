// Package notify delivers alerts and decision events to downstream
// consumers over the event bus.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/trustlane/kestrel/internal/domain"
)

// DecisionEvent is the payload published when an assessment completes.
// Ticket is set when the decision opened a review ticket.
type DecisionEvent struct {
	Assessment *domain.RiskAssessment `json:"assessment"`
	Ticket     *domain.ReviewTicket   `json:"ticket,omitempty"`
}

// BusNotifier publishes notifications on the event bus. Delivery is
// fire-and-forget: consumers that need durability subscribe via the
// NATS bus in Pro deployments.
type BusNotifier struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewBusNotifier creates a notifier backed by the event bus.
func NewBusNotifier(bus domain.EventBus, logger *slog.Logger) *BusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusNotifier{
		bus:    bus,
		logger: logger.With("component", "notify"),
	}
}

// NotifyAlert publishes an alert. Expired-ticket alerts additionally go
// out on the ticket expiry topic for ticket-stream consumers.
func (n *BusNotifier) NotifyAlert(ctx context.Context, alert *domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := n.bus.Publish(ctx, alert.TenantID, domain.TopicAlertRaised, payload); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	if alert.Type == domain.AlertTicketExpired {
		if err := n.bus.Publish(ctx, alert.TenantID, domain.TopicTicketExpired, payload); err != nil {
			n.logger.Warn("failed to publish ticket expiry event",
				"alert_id", alert.ID,
				"error", err)
		}
	}

	return nil
}

// NotifyDecision publishes the completed assessment, and the opened
// ticket when the decision required review.
func (n *BusNotifier) NotifyDecision(ctx context.Context, a *domain.RiskAssessment, t *domain.ReviewTicket) error {
	payload, err := json.Marshal(DecisionEvent{Assessment: a, Ticket: t})
	if err != nil {
		return fmt.Errorf("failed to marshal decision event: %w", err)
	}

	if err := n.bus.Publish(ctx, a.TenantID, domain.TopicAssessmentCompleted, payload); err != nil {
		return fmt.Errorf("failed to publish decision: %w", err)
	}

	if t != nil {
		ticketPayload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal ticket: %w", err)
		}
		if err := n.bus.Publish(ctx, a.TenantID, domain.TopicTicketOpened, ticketPayload); err != nil {
			n.logger.Warn("failed to publish ticket opened event",
				"ticket_id", t.ID,
				"error", err)
		}
	}

	return nil
}
