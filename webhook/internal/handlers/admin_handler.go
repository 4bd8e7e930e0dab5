package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/paystream-labs/paystream/common/httputil"
	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/webhook/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// AdminHandler serves the operator API for inspecting and retrying events.
// All routes sit behind bearer token auth; see middleware.AdminAuth.
type AdminHandler struct {
	service *service.IngestService
	logger  *logging.Logger
}

func NewAdminHandler(svc *service.IngestService, logger *logging.Logger) *AdminHandler {
	return &AdminHandler{
		service: svc,
		logger:  logger,
	}
}

// ListEvents handles GET /admin/events with provider, status, limit and
// offset query params.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := models.EventFilter{
		Provider: r.URL.Query().Get("provider"),
		Limit:    defaultPageSize,
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := models.EventStatus(s)
		if !status.Valid() {
			httputil.WriteError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = status
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = min(n, maxPageSize)
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	events, total, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "event listing failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetEvent handles GET /admin/events/{id}.
func (h *AdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "event lookup failed",
			logging.EventID(id), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, event)
}

// RetryEvent handles POST /admin/events/{id}/retry, resetting a failed event
// to pending and re-enqueueing it.
func (h *AdminHandler) RetryEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.RetryEvent(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "event not found")
			return
		}
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "event retry requested", logging.EventID(id))
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"eventId": id,
		"status":  string(models.StatusPending),
	})
}
