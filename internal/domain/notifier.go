package domain

import "context"

// Notifier is the outbound port for alerts and decision events. Delivery
// (email, webhook, pager) lives behind this interface; the core only
// hands events over.
type Notifier interface {
	// NotifyAlert delivers a monitor or sweep alert.
	NotifyAlert(ctx context.Context, alert *Alert) error

	// NotifyDecision delivers a completed assessment decision.
	NotifyDecision(ctx context.Context, assessment *RiskAssessment, ticket *ReviewTicket) error
}
