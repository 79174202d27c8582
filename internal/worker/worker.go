// Package worker provides async activity ingestion for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
	"github.com/trustlane/kestrel/internal/monitor"
)

// Worker consumes activity events from the EventBus and feeds them to
// the activity monitor. The synchronous API path calls the monitor
// directly and never publishes to the ingestion topic, so an event is
// processed exactly once regardless of which path delivered it.
type Worker struct {
	bus     domain.EventBus
	monitor *monitor.Monitor
	logger  *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, mon *monitor.Monitor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		monitor: mon,
		logger:  logger.With("component", "worker"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming activity for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			w.logger.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	w.logger.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicActivityIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicActivityIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processActivity(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicActivityIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processActivity(ctx, msg.TenantID, msg)
}

// ActivityMessage is the message payload for bus-fed activity ingestion.
type ActivityMessage struct {
	EventID    string    `json:"eventId,omitempty"`
	TenantID   string    `json:"tenantId"`
	SubjectID  string    `json:"subjectId"`
	Type       string    `json:"type"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Location   string    `json:"location,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt,omitempty"`
}

// processActivity feeds one activity event to the monitor.
func (w *Worker) processActivity(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var actMsg ActivityMessage
	if err := json.Unmarshal(msg.Payload, &actMsg); err != nil {
		w.logger.Error("failed to parse activity message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if actMsg.TenantID != "" {
		tenantID = actMsg.TenantID
	}

	event := &domain.ActivityEvent{
		ID:         actMsg.EventID,
		TenantID:   tenantID,
		SubjectID:  actMsg.SubjectID,
		Type:       actMsg.Type,
		DeviceID:   actMsg.DeviceID,
		Location:   actMsg.Location,
		Amount:     actMsg.Amount,
		OccurredAt: actMsg.OccurredAt,
	}

	alerts, err := w.monitor.Ingest(ctx, event)
	if err != nil {
		w.logger.Error("activity ingestion failed",
			"message_id", msg.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	w.logger.Debug("activity processed",
		"tenant_id", tenantID,
		"subject_id", actMsg.SubjectID,
		"type", actMsg.Type,
		"alerts_raised", len(alerts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
