package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/commentpilot/commentpilot/internal/ingress"
	"github.com/commentpilot/commentpilot/internal/repository/postgres"
	"github.com/commentpilot/commentpilot/internal/services"
	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	Health  *HealthHandler
	Webhook *WebhookHandler
	Rule    *RuleHandler
	Account *AccountHandler
	Log     *LogHandler
}

// HealthCheckers holds all health check dependencies
type HealthCheckers struct {
	DB    HealthChecker
	Redis HealthChecker
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	log *logger.Logger,
	m *metrics.Metrics,
	cfg *config.Config,
	ruleService *services.RuleService,
	accountRepo *postgres.AccountRepository,
	logRepo *postgres.LogRepository,
	eventRepo *postgres.EventRepository,
	processor WebhookProcessor,
	deduper ingress.Deduper,
	healthCheckers *HealthCheckers,
) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(log, healthCheckers.DB, healthCheckers.Redis, cfg.App.Version),
		Webhook: NewWebhookHandler(log, m, processor, deduper, cfg),
		Rule:    NewRuleHandler(log, ruleService),
		Account: NewAccountHandler(log, accountRepo),
		Log:     NewLogHandler(log, logRepo, eventRepo),
	}
}

// Shared response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
