package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/commentpilot/commentpilot/internal/ingress"
	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookProcessor consumes an accepted delivery off the request path.
type WebhookProcessor interface {
	Process(ctx context.Context, payload *models.WebhookPayload)
}

// WebhookHandler owns the Meta webhook endpoint: the GET verification
// handshake and the POST event stream.
type WebhookHandler struct {
	logger           *logger.Logger
	metrics          *metrics.Metrics
	processor        WebhookProcessor
	deduper          ingress.Deduper
	verifyToken      string
	appSecret        string
	requireSignature bool
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(log *logger.Logger, m *metrics.Metrics, processor WebhookProcessor, deduper ingress.Deduper, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		logger:           log,
		metrics:          m,
		processor:        processor,
		deduper:          deduper,
		verifyToken:      cfg.Webhook.VerifyToken,
		appSecret:        cfg.Webhook.AppSecret,
		requireSignature: cfg.Webhook.RequireSignature,
	}
}

// Verify answers Meta's subscription handshake. The challenge is echoed
// back as plain text only when the mode and token both match.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.logger.Warn("webhook verification rejected",
			logger.String("mode", mode),
			logger.String("remote_addr", r.RemoteAddr),
		)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive accepts an event delivery. Accepted deliveries are acknowledged
// with 200 immediately and processed in the background; only authentication
// failures and unreadable requests are rejected, since any non-200 makes
// Meta retry and eventually disable the subscription.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.RecordWebhookEvent("unreadable")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// A present signature is always checked. Only its absence is
	// tolerated, and only when strict mode is off.
	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" && !h.requireSignature {
		h.logger.Warn("webhook delivery without a signature accepted",
			logger.String("remote_addr", r.RemoteAddr),
		)
	} else if !ingress.VerifySignature(body, signature, h.appSecret) {
		h.metrics.RecordWebhookEvent("bad_signature")
		h.logger.Warn("webhook signature rejected", logger.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Acknowledge anyway: a retry of an unparseable body will not
		// parse any better.
		h.metrics.RecordWebhookEvent("malformed")
		h.logger.Warn("malformed webhook payload", logger.Err(err))
		h.ack(w)
		return
	}

	if payload.Object != "instagram" {
		h.metrics.RecordWebhookEvent("ignored")
		h.ack(w)
		return
	}

	if !h.deduper.Claim(r.Context(), ingress.EventKey(&payload)) {
		h.metrics.RecordWebhookEvent("duplicate")
		h.logger.Debug("duplicate webhook delivery ignored")
		h.ack(w)
		return
	}

	h.metrics.RecordWebhookEvent("accepted")

	// Replies are paced with deliberate delays, so processing happens off
	// the request path. The context must outlive the request.
	go h.processor.Process(context.WithoutCancel(r.Context()), &payload)

	h.ack(w)
}

func (h *WebhookHandler) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}
