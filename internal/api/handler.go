// Package api exposes the query service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/snograph/snoquery/internal/analytics"
	"github.com/snograph/snoquery/internal/service"
	"github.com/snograph/snoquery/pkg/errors"
	"github.com/snograph/snoquery/pkg/logger"
)

// Handler serves the concept query API.
type Handler struct {
	service   *service.QueryService
	collector *analytics.Collector
	logger    *slog.Logger
}

// New creates a Handler. collector may be nil when analytics is disabled.
func New(svc *service.QueryService, collector *analytics.Collector) *Handler {
	return &Handler{
		service:   svc,
		collector: collector,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Register installs all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/concepts", h.SearchConcepts)
	mux.HandleFunc("GET /api/v1/concepts/{id}", h.ConceptByID)
	mux.HandleFunc("GET /api/v1/concepts/{id}/ancestors", h.Ancestors)
	mux.HandleFunc("GET /api/v1/concepts/{id}/descendants", h.Descendants)
	mux.HandleFunc("GET /api/v1/refsets", h.ReferenceSets)
	mux.HandleFunc("GET /api/v1/descriptions/{id}/concept", h.ConceptByDescriptionID)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
}

// SearchConcepts answers GET /api/v1/concepts. Query parameters: ecl (the
// constraint expression), term (free text), offset, limit, and form=ids
// for the identifier-only projection.
func (h *Handler) SearchConcepts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	constraint := r.URL.Query().Get("ecl")
	term := r.URL.Query().Get("term")
	offset, limit, err := h.pageParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("form") == "ids" {
		page, err := h.service.SearchIDs(ctx, constraint, term, offset, limit)
		h.record(ctx, "search_ids", constraint, term, offset, limit, pageTotal(err, func() int { return page.Total }), start, err)
		if err != nil {
			h.writeServiceError(w, log, err)
			return
		}
		h.writeJSON(w, http.StatusOK, page)
		return
	}

	page, err := h.service.Search(ctx, constraint, term, offset, limit)
	h.record(ctx, "search", constraint, term, offset, limit, pageTotal(err, func() int { return page.Total }), start, err)
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}
	log.Info("search completed",
		"constraint", constraint,
		"term", term,
		"total", page.Total,
		"returned", len(page.Items),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, page)
}

// ConceptByID answers GET /api/v1/concepts/{id}.
func (h *Handler) ConceptByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	concept, err := h.service.ConceptByID(ctx, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, logger.FromContext(ctx), err)
		return
	}
	h.writeJSON(w, http.StatusOK, concept)
}

// Ancestors answers GET /api/v1/concepts/{id}/ancestors.
func (h *Handler) Ancestors(w http.ResponseWriter, r *http.Request) {
	h.traversal(w, r, "ancestors", h.service.Ancestors)
}

// Descendants answers GET /api/v1/concepts/{id}/descendants.
func (h *Handler) Descendants(w http.ResponseWriter, r *http.Request) {
	h.traversal(w, r, "descendants", h.service.Descendants)
}

func (h *Handler) traversal(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fn func(ctx context.Context, conceptID string, offset, limit int) (*service.ConceptPage, error),
) {
	start := time.Now()
	ctx := r.Context()
	conceptID := r.PathValue("id")
	offset, limit, err := h.pageParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := fn(ctx, conceptID, offset, limit)
	h.record(ctx, operation, conceptID, "", offset, limit, pageTotal(err, func() int { return page.Total }), start, err)
	if err != nil {
		h.writeServiceError(w, logger.FromContext(ctx), err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// ReferenceSets answers GET /api/v1/refsets.
func (h *Handler) ReferenceSets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	offset, limit, err := h.pageParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.service.ReferenceSets(ctx, offset, limit)
	if err != nil {
		h.writeServiceError(w, logger.FromContext(ctx), err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// ConceptByDescriptionID answers GET /api/v1/descriptions/{id}/concept.
func (h *Handler) ConceptByDescriptionID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	descriptionID := r.PathValue("id")
	concept, err := h.service.ConceptByDescriptionID(ctx, descriptionID)
	if err != nil {
		h.writeServiceError(w, logger.FromContext(ctx), err)
		return
	}
	if concept == nil {
		h.writeError(w, http.StatusNotFound, "no concept carries description "+descriptionID)
		return
	}
	h.writeJSON(w, http.StatusOK, concept)
}

// Stats answers GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.ReleaseStats())
}

func (h *Handler) pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.Newf(errors.ErrInvalidInput, 400, "offset must be a non-negative integer")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || (limit < 1 && limit != -1) {
			return 0, 0, errors.Newf(errors.ErrInvalidInput, 400, "limit must be a positive integer or -1 for unlimited")
		}
	}
	return offset, limit, nil
}

func (h *Handler) record(ctx context.Context, operation, constraint, term string, offset, limit, total int, start time.Time, err error) {
	if h.collector == nil {
		return
	}
	h.collector.Record(analytics.QueryEvent{
		RequestID:  logger.RequestID(ctx),
		Operation:  operation,
		Constraint: constraint,
		Term:       term,
		Offset:     offset,
		Limit:      limit,
		Total:      total,
		DurationMS: time.Since(start).Milliseconds(),
		Outcome:    outcome(err, total),
		Timestamp:  time.Now().UTC(),
	})
}

func outcome(err error, total int) string {
	switch {
	case err == nil && total == 0:
		return "zero_result"
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrInvalidConstraint), errors.Is(err, errors.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func pageTotal(err error, total func() int) int {
	if err != nil {
		return 0
	}
	return total()
}

func (h *Handler) writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "status", status, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
