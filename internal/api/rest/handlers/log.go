package handlers

import (
	"net/http"
	"strconv"

	"github.com/commentpilot/commentpilot/internal/repository/postgres"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LogHandler serves the automation audit trail
type LogHandler struct {
	logger    *logger.Logger
	logRepo   *postgres.LogRepository
	eventRepo *postgres.EventRepository
}

// NewLogHandler creates a new log handler
func NewLogHandler(log *logger.Logger, logRepo *postgres.LogRepository, eventRepo *postgres.EventRepository) *LogHandler {
	return &LogHandler{
		logger:    log,
		logRepo:   logRepo,
		eventRepo: eventRepo,
	}
}

// List retrieves a workspace's automation logs, newest first
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid workspace ID")
		return
	}

	limit, offset := pagination(r)

	logs, total, err := h.logRepo.List(r.Context(), workspaceID, limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list automation logs: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list logs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":      logs,
		"total":     total,
		"page":      offset/limit + 1,
		"page_size": limit,
	})
}

// ListEvents retrieves a workspace's persisted platform events
func (h *LogHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid workspace ID")
		return
	}

	limit, offset := pagination(r)

	events, err := h.eventRepo.ListByWorkspace(r.Context(), workspaceID, limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list platform events: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}
