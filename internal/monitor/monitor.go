// Package monitor tracks per-subject activity in sliding windows and
// raises threshold alerts with cooldown-based deduplication.
package monitor

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustlane/kestrel/internal/domain"
	"github.com/trustlane/kestrel/internal/metrics"
)

// windowShards bounds lock contention across subjects. Each shard owns
// the window state for the subjects that hash into it, so memory stays
// proportional to active subjects, not to shard count.
const windowShards = 64

// Window labels reported in stats and alerts.
const (
	windowRapid     = "rapid"
	windowDevices   = "devices"
	windowLocations = "locations"
)

type entry struct {
	at       time.Time
	kind     string
	deviceID string
	location string
	amount   float64
}

type subjectState struct {
	entries []entry
}

type shard struct {
	mu       sync.Mutex
	subjects map[string]*subjectState
}

// Monitor ingests activity events and evaluates sliding-window rules.
// Alert candidates pass through a per-(subject, type) cooldown counter
// in the cache; when the cache is unreachable the candidate is
// suppressed rather than risking an alert storm.
type Monitor struct {
	cfg      *domain.Config
	cache    domain.Cache
	notifier domain.Notifier
	clock    domain.Clock
	logger   *slog.Logger

	shards [windowShards]shard
}

// NewMonitor creates the activity monitor.
func NewMonitor(cfg *domain.Config, cache domain.Cache, notifier domain.Notifier, clock domain.Clock, logger *slog.Logger) *Monitor {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:      cfg,
		cache:    cache,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With("component", "monitor"),
	}
	for i := range m.shards {
		m.shards[i].subjects = make(map[string]*subjectState)
	}
	return m
}

// Ingest records one activity event, evaluates the window rules, and
// returns the alerts that survived deduplication. Events missing an
// occurredAt timestamp are stamped with the current time.
func (m *Monitor) Ingest(ctx context.Context, event *domain.ActivityEvent) ([]*domain.Alert, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	at := event.OccurredAt
	if at.IsZero() {
		at = now
	}

	metrics.ActivityEventsTotal.WithLabelValues(event.Type).Inc()

	sh := m.shardFor(event.TenantID, event.SubjectID)
	sh.mu.Lock()
	state, ok := sh.subjects[m.key(event.TenantID, event.SubjectID)]
	if !ok {
		state = &subjectState{}
		sh.subjects[m.key(event.TenantID, event.SubjectID)] = state
	}
	state.entries = append(state.entries, entry{
		at:       at,
		kind:     event.Type,
		deviceID: event.DeviceID,
		location: event.Location,
		amount:   event.Amount,
	})
	m.evict(state, now)
	candidates := m.evaluate(event, state, now)
	sh.mu.Unlock()

	// Dedup and delivery happen outside the shard lock.
	var raised []*domain.Alert
	for _, alert := range candidates {
		if !m.passCooldown(ctx, alert) {
			continue
		}
		metrics.AlertsTotal.WithLabelValues(alert.Type).Inc()
		m.logger.Info("alert raised",
			"tenant_id", alert.TenantID,
			"subject_id", alert.SubjectID,
			"type", alert.Type,
			"severity", string(alert.Severity),
			"count", alert.Count)
		if err := m.notifier.NotifyAlert(ctx, alert); err != nil {
			m.logger.Warn("failed to deliver alert",
				"alert_id", alert.ID,
				"type", alert.Type,
				"error", err)
		}
		raised = append(raised, alert)
	}
	return raised, nil
}

// Stats returns a snapshot of every window for one subject. Subjects
// with no retained activity get zero-count windows.
func (m *Monitor) Stats(ctx context.Context, tenantID, subjectID string) ([]*domain.WindowStats, error) {
	if tenantID == "" {
		return nil, &domain.ValidationError{Field: "tenantId", Reason: "required"}
	}
	if subjectID == "" {
		return nil, &domain.ValidationError{Field: "subjectId", Reason: "required"}
	}

	now := m.clock.Now()
	sh := m.shardFor(tenantID, subjectID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	state, ok := sh.subjects[m.key(tenantID, subjectID)]
	if !ok {
		state = &subjectState{}
	} else {
		m.evict(state, now)
	}

	mon := m.cfg.Monitor
	return []*domain.WindowStats{
		m.windowStats(state, windowRapid, mon.RapidWindow, now),
		m.windowStats(state, windowDevices, mon.DeviceWindow, now),
		m.windowStats(state, windowLocations, mon.LocationWindow, now),
	}, nil
}

// evaluate checks every window rule against the retained entries. The
// caller holds the shard lock.
func (m *Monitor) evaluate(event *domain.ActivityEvent, state *subjectState, now time.Time) []*domain.Alert {
	mon := m.cfg.Monitor
	var out []*domain.Alert

	rapid := m.countSince(state, now.Add(-mon.RapidWindow))
	if rapid > mon.RapidCountThreshold {
		out = append(out, m.newAlert(event, domain.AlertRapidActivity, domain.AlertWarning, rapid, mon.RapidWindow,
			fmt.Sprintf("%d events in %s", rapid, mon.RapidWindow)))
	}

	devices := m.distinctSince(state, now.Add(-mon.DeviceWindow), func(e entry) string { return e.deviceID })
	if devices >= mon.DeviceCyclingThreshold {
		out = append(out, m.newAlert(event, domain.AlertDeviceCycling, domain.AlertWarning, devices, mon.DeviceWindow,
			fmt.Sprintf("%d distinct devices in %s", devices, mon.DeviceWindow)))
	}

	locations := m.distinctSince(state, now.Add(-mon.LocationWindow), func(e entry) string { return e.location })
	if locations >= mon.LocationSpreadThreshold {
		out = append(out, m.newAlert(event, domain.AlertLocationSpread, domain.AlertCritical, locations, mon.LocationWindow,
			fmt.Sprintf("%d distinct locations in %s", locations, mon.LocationWindow)))
	}

	return out
}

func (m *Monitor) newAlert(event *domain.ActivityEvent, alertType string, severity domain.AlertSeverity, count int, window time.Duration, message string) *domain.Alert {
	return &domain.Alert{
		ID:        uuid.New().String(),
		TenantID:  event.TenantID,
		SubjectID: event.SubjectID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Window:    window.String(),
		Count:     count,
		CreatedAt: m.clock.Now(),
	}
}

// passCooldown reports whether an alert is the first of its (subject,
// type) within the cooldown. A cache failure suppresses the alert: a
// degraded cache must not turn into an alert storm.
func (m *Monitor) passCooldown(ctx context.Context, alert *domain.Alert) bool {
	key := "alert:" + alert.SubjectID + ":" + alert.Type
	n, err := m.cache.IncrementCounter(ctx, alert.TenantID, key, m.cfg.Monitor.AlertCooldown)
	if err != nil {
		metrics.AlertsSuppressedTotal.WithLabelValues(alert.Type).Inc()
		m.logger.Warn("alert cooldown unavailable, suppressing",
			"tenant_id", alert.TenantID,
			"subject_id", alert.SubjectID,
			"type", alert.Type,
			"error", err)
		return false
	}
	if n > 1 {
		metrics.AlertsSuppressedTotal.WithLabelValues(alert.Type).Inc()
		return false
	}
	return true
}

// evict drops entries older than the longest window. Eviction is lazy:
// it runs on ingest and stats reads, never on a timer.
func (m *Monitor) evict(state *subjectState, now time.Time) {
	mon := m.cfg.Monitor
	longest := mon.RapidWindow
	if mon.DeviceWindow > longest {
		longest = mon.DeviceWindow
	}
	if mon.LocationWindow > longest {
		longest = mon.LocationWindow
	}
	cutoff := now.Add(-longest)

	kept := state.entries[:0]
	for _, e := range state.entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	state.entries = kept
}

func (m *Monitor) countSince(state *subjectState, cutoff time.Time) int {
	n := 0
	for _, e := range state.entries {
		if e.at.After(cutoff) {
			n++
		}
	}
	return n
}

func (m *Monitor) distinctSince(state *subjectState, cutoff time.Time, field func(entry) string) int {
	seen := make(map[string]struct{})
	for _, e := range state.entries {
		if v := field(e); v != "" && e.at.After(cutoff) {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func (m *Monitor) windowStats(state *subjectState, label string, window time.Duration, now time.Time) *domain.WindowStats {
	cutoff := now.Add(-window)
	stats := &domain.WindowStats{Window: label}

	devices := make(map[string]struct{})
	locations := make(map[string]struct{})
	for _, e := range state.entries {
		if !e.at.After(cutoff) {
			continue
		}
		stats.Count++
		stats.TotalAmount += e.amount
		if e.deviceID != "" {
			devices[e.deviceID] = struct{}{}
		}
		if e.location != "" {
			locations[e.location] = struct{}{}
		}
		if stats.OldestAt.IsZero() || e.at.Before(stats.OldestAt) {
			stats.OldestAt = e.at
		}
		if e.at.After(stats.NewestAt) {
			stats.NewestAt = e.at
		}
	}
	stats.DistinctDevices = len(devices)
	stats.DistinctLocations = len(locations)
	return stats
}

func (m *Monitor) key(tenantID, subjectID string) string {
	return tenantID + "|" + subjectID
}

func (m *Monitor) shardFor(tenantID, subjectID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(m.key(tenantID, subjectID)))
	return &m.shards[h.Sum32()%windowShards]
}
