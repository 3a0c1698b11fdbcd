package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/commentpilot/commentpilot/internal/ingress"
	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/logger"
)

type mockProcessor struct {
	mu       sync.Mutex
	payloads []*models.WebhookPayload
}

func (m *mockProcessor) Process(ctx context.Context, payload *models.WebhookPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
}

func (m *mockProcessor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

func (m *mockProcessor) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.count() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.count() != n {
		t.Fatalf("expected %d processed payloads, got %d", n, m.count())
	}
}

func webhookConfig(requireSignature bool) *config.Config {
	cfg := &config.Config{}
	cfg.Webhook.VerifyToken = "verify-me"
	cfg.Webhook.AppSecret = "app-secret"
	cfg.Webhook.RequireSignature = requireSignature
	return cfg
}

func newWebhookHandler(requireSignature bool) (*WebhookHandler, *mockProcessor) {
	processor := &mockProcessor{}
	h := NewWebhookHandler(
		logger.NewForTesting(),
		nil,
		processor,
		ingress.NewMemoryDeduper(time.Minute),
		webhookConfig(requireSignature),
	)
	return h, processor
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerify(t *testing.T) {
	h, _ := newWebhookHandler(false)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid handshake", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing params", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+tt.query, nil)
			rec := httptest.NewRecorder()

			h.Verify(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestWebhookReceive_AcceptsAndProcessesAsync(t *testing.T) {
	h, processor := newWebhookHandler(false)

	body := []byte(`{"object":"instagram","entry":[{"id":"page_1","time":1700000000}]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "EVENT_RECEIVED" {
		t.Errorf("body = %q", rec.Body.String())
	}

	processor.waitFor(t, 1)
}

func TestWebhookReceive_SignatureEnforced(t *testing.T) {
	h, processor := newWebhookHandler(true)
	body := []byte(`{"object":"instagram","entry":[{"id":"page_1","time":1700000000}]}`)

	// Missing signature.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("missing signature: status = %d, want 403", rec.Code)
	}

	// Wrong secret.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody(body, "other-secret"))
	rec = httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong secret: status = %d, want 403", rec.Code)
	}

	if processor.count() != 0 {
		t.Error("rejected deliveries must not be processed")
	}

	// Valid signature.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody(body, "app-secret"))
	rec = httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid signature: status = %d, want 200", rec.Code)
	}
	processor.waitFor(t, 1)
}

func TestWebhookReceive_ForgedSignatureRejectedInLenientMode(t *testing.T) {
	h, processor := newWebhookHandler(false)
	body := []byte(`{"object":"instagram","entry":[{"id":"page_1","time":1700000000}]}`)

	// Lenient mode tolerates a missing signature, never a wrong one.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody(body, "attacker-secret"))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("forged signature: status = %d, want 403", rec.Code)
	}
	if processor.count() != 0 {
		t.Error("forged deliveries must not be processed")
	}

	// A correctly signed delivery still goes through.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody(body, "app-secret"))
	rec = httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid signature: status = %d, want 200", rec.Code)
	}
	processor.waitFor(t, 1)
}

func TestWebhookReceive_DuplicateDeliveryIsAcknowledgedOnce(t *testing.T) {
	h, processor := newWebhookHandler(false)
	body := []byte(`{"object":"instagram","entry":[{"id":"page_1","time":1700000000}]}`)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("retry %d: status = %d, want 200", i, rec.Code)
		}
	}

	processor.waitFor(t, 1)
}

func TestWebhookReceive_MalformedBodyStillAcknowledged(t *testing.T) {
	h, processor := newWebhookHandler(false)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader([]byte(`{broken`)))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if processor.count() != 0 {
		t.Error("malformed payloads must not be processed")
	}
}

func TestWebhookReceive_IgnoresOtherObjects(t *testing.T) {
	h, processor := newWebhookHandler(false)

	body := []byte(`{"object":"page","entry":[{"id":"page_1","time":1700000000}]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if processor.count() != 0 {
		t.Error("non-instagram objects must not be processed")
	}
}
