package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/internal/repository/postgres"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AccountHandler handles social account HTTP requests
type AccountHandler struct {
	logger      *logger.Logger
	accountRepo *postgres.AccountRepository
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(log *logger.Logger, accountRepo *postgres.AccountRepository) *AccountHandler {
	return &AccountHandler{
		logger:      log,
		accountRepo: accountRepo,
	}
}

// Connect registers a platform account for a workspace. Reconnecting the
// same page refreshes its token and username.
func (h *AccountHandler) Connect(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid workspace ID")
		return
	}

	var req models.ConnectAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validator.Validate(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accountRepo.Create(r.Context(), workspaceID, &req)
	if err != nil {
		h.logger.Errorf("Failed to connect account: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to connect account")
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// List retrieves a workspace's connected accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid workspace ID")
		return
	}

	accounts, err := h.accountRepo.ListByWorkspace(r.Context(), workspaceID)
	if err != nil {
		h.logger.Errorf("Failed to list accounts: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}
