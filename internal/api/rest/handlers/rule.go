package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/internal/repository/postgres"
	"github.com/commentpilot/commentpilot/internal/services"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RuleHandler handles rule-related HTTP requests
type RuleHandler struct {
	logger      *logger.Logger
	ruleService *services.RuleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(log *logger.Logger, ruleService *services.RuleService) *RuleHandler {
	return &RuleHandler{
		logger:      log,
		ruleService: ruleService,
	}
}

// Create creates a new rule
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}

	var req models.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.ruleService.Create(r.Context(), workspaceID, &req)
	if err != nil {
		h.logger.Errorf("Failed to create rule: %v", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// Get retrieves a rule by ID
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}

	rule, err := h.ruleService.Get(r.Context(), workspaceID, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Rule not found")
			return
		}
		h.logger.Errorf("Failed to get rule: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to get rule")
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// List retrieves a workspace's rules
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	var isActive *bool
	if activeStr := r.URL.Query().Get("active"); activeStr != "" {
		if a, err := strconv.ParseBool(activeStr); err == nil {
			isActive = &a
		}
	}

	rules, total, err := h.ruleService.List(r.Context(), workspaceID, isActive, limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list rules: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list rules")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rules":     rules,
		"total":     total,
		"page":      offset/limit + 1,
		"page_size": limit,
	})
}

// Update updates a rule
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}

	var req models.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.ruleService.Update(r.Context(), workspaceID, id, &req)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Rule not found")
			return
		}
		h.logger.Errorf("Failed to update rule: %v", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Delete deletes a rule
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}

	if err := h.ruleService.Delete(r.Context(), workspaceID, id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Rule not found")
			return
		}
		h.logger.Errorf("Failed to delete rule: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete rule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Enable activates a rule
func (h *RuleHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "Rule enabled")
}

// Disable deactivates a rule
func (h *RuleHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "Rule disabled")
}

func (h *RuleHandler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	workspaceID, ok := h.workspaceID(w, r)
	if !ok {
		return
	}
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}

	if err := h.ruleService.SetActive(r.Context(), workspaceID, id, active); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Rule not found")
			return
		}
		h.logger.Errorf("Failed to set rule active state: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to update rule")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (h *RuleHandler) workspaceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid workspace ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *RuleHandler) ruleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid rule ID")
		return uuid.Nil, false
	}
	return id, true
}
