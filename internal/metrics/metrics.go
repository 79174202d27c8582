// Package metrics exposes Prometheus collectors for the assessment
// pipeline, ticket workflow, and activity monitor.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "kestrel"

var (
	// AssessmentsTotal counts completed assessments by level and action.
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Completed risk assessments.",
		},
		[]string{"level", "action"},
	)

	// AssessmentDuration observes end-to-end assessment latency.
	AssessmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "End-to-end assessment latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ScorerFailuresTotal counts contained scorer failures by scorer name.
	ScorerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_failures_total",
			Help:      "Scorer errors, panics, and timeouts.",
		},
		[]string{"scorer"},
	)

	// DegradedAssessmentsTotal counts assessments produced in degraded mode.
	DegradedAssessmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_degraded_total",
			Help:      "Assessments completed with more than half of scorers failing.",
		},
	)

	// TicketsOpenedTotal counts review tickets opened by priority.
	TicketsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_opened_total",
			Help:      "Review tickets opened.",
		},
		[]string{"priority"},
	)

	// TicketTransitionsTotal counts ticket status transitions.
	TicketTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transitions_total",
			Help:      "Ticket status transitions by target status.",
		},
		[]string{"to"},
	)

	// TicketConflictsTotal counts lost optimistic-concurrency races.
	TicketConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_conflicts_total",
			Help:      "Ticket updates rejected by status conflicts.",
		},
	)

	// TicketsExpiredTotal counts tickets expired by the SLA sweep.
	TicketsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_expired_total",
			Help:      "Tickets transitioned to expired by the sweep.",
		},
	)

	// AlertsTotal counts emitted alerts by type.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts emitted after deduplication.",
		},
		[]string{"type"},
	)

	// AlertsSuppressedTotal counts alerts suppressed by the cooldown.
	AlertsSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Alert candidates suppressed within the dedup cooldown.",
		},
		[]string{"type"},
	)

	// ActivityEventsTotal counts ingested activity events by type.
	ActivityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events ingested by the monitor.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		AssessmentsTotal,
		AssessmentDuration,
		ScorerFailuresTotal,
		DegradedAssessmentsTotal,
		TicketsOpenedTotal,
		TicketTransitionsTotal,
		TicketConflictsTotal,
		TicketsExpiredTotal,
		AlertsTotal,
		AlertsSuppressedTotal,
		ActivityEventsTotal,
	)
}
