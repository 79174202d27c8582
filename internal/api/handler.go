package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trustlane/kestrel/internal/assess"
	"github.com/trustlane/kestrel/internal/domain"
	"github.com/trustlane/kestrel/internal/monitor"
	"github.com/trustlane/kestrel/internal/ticket"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service  *assess.Service
	workflow *ticket.Workflow
	monitor  *monitor.Monitor
	repo     domain.Repository
	cache    domain.Cache
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(service *assess.Service, workflow *ticket.Workflow, mon *monitor.Monitor, repo domain.Repository, cache domain.Cache, version string) *Handler {
	return &Handler{
		service:  service,
		workflow: workflow,
		monitor:  mon,
		repo:     repo,
		cache:    cache,
		version:  version,
	}
}

// Assess handles POST /assess requests. Assessment is synchronous: the
// response carries the decision, and the ticket ID when one was opened.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// The header is authoritative for tenancy
	rc := req.ToRiskContext()
	rc.ID = uuid.New().String()
	rc.TenantID = tenantID

	if err := rc.Validate(); err != nil {
		writeError(w, err)
		return
	}

	assessment, tk, err := h.service.Assess(ctx, rc)
	if err != nil {
		writeError(w, err)
		return
	}

	ticketID := ""
	if tk != nil {
		ticketID = tk.ID
	}
	resp := assessment.ToResponse(ticketID)
	resp.Metadata.TraceID = traceID

	writeJSON(w, http.StatusOK, resp)
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	assessmentID := chi.URLParam(r, "id")

	if assessmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	a, err := h.service.GetAssessment(ctx, tenantID, assessmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// IngestActivity handles POST /activity requests. Ingestion is
// synchronous; any alerts raised by this event come back in the
// response. Bus-fed ingestion goes through the worker instead and never
// hits this path, so each event is processed exactly once.
func (h *Handler) IngestActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var event domain.ActivityEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	event.TenantID = tenantID
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	alerts, err := h.monitor.Ingest(ctx, &event)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eventId": event.ID,
		"alerts":  alerts,
		"count":   len(alerts),
	})
}

// GetSubjectActivity returns the live window statistics for a subject.
func (h *Handler) GetSubjectActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	subjectID := chi.URLParam(r, "id")

	if subjectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "subject id is required",
		})
		return
	}

	stats, err := h.monitor.Stats(ctx, tenantID, subjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subjectId": subjectID,
		"windows":   stats,
	})
}

// ListTickets returns review tickets for the tenant, optionally
// filtered by status.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	status := domain.TicketStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.TicketPending, domain.TicketAssigned, domain.TicketApproved,
		domain.TicketRejected, domain.TicketExpired:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown status filter: " + string(status),
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	tickets, err := h.workflow.List(ctx, tenantID, status, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

// GetTicket retrieves a review ticket by ID.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ticketID := chi.URLParam(r, "id")

	if ticketID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ticket id is required",
		})
		return
	}

	t, err := h.workflow.Get(ctx, tenantID, ticketID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// AssignTicket handles POST /tickets/{id}/assign.
func (h *Handler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ticketID := chi.URLParam(r, "id")

	var req domain.TicketAssignment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	t, err := h.workflow.Assign(ctx, tenantID, ticketID, req.Assignee)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// DecideTicket handles POST /tickets/{id}/decide.
func (h *Handler) DecideTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ticketID := chi.URLParam(r, "id")

	var req domain.TicketDecision
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	t, err := h.workflow.Decide(ctx, tenantID, ticketID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeError maps domain errors onto HTTP status codes. Unrecognized
// errors become opaque 500s; the detail stays in the log.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.ConflictError
		expiredErr    *domain.ExpiredTicketError
		degradedErr   *domain.DegradedServiceError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Error(),
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
		})
	case errors.As(err, &expiredErr):
		writeJSON(w, http.StatusGone, map[string]interface{}{
			"error": expiredErr.Error(),
			"dueAt": expiredErr.DueAt,
		})
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    conflictErr.Error(),
			"expected": conflictErr.Expected,
			"actual":   conflictErr.Actual,
		})
	case errors.As(err, &degradedErr):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": degradedErr.Error(),
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
