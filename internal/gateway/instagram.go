package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
)

// Messenger is the engine's view of the platform messaging API. Both
// operations are fallible remote calls; neither deduplicates.
type Messenger interface {
	// ReplyToComment posts a public reply under a comment.
	ReplyToComment(ctx context.Context, commentID, text, accessToken string) error
	// SendPrivateReply sends a private message scoped to a comment.
	// Keying by comment ID sidesteps the platform's DM conversation-window
	// restrictions on unsolicited messages.
	SendPrivateReply(ctx context.Context, commentID, text, accessToken string) error
}

// InstagramClient talks to the Instagram Graph API
type InstagramClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.Metrics

	mu         sync.Mutex
	identities map[string]pageIdentity // keyed by access token
}

type pageIdentity struct {
	ID       string
	Username string
}

// NewInstagramClient creates a new Graph API client
func NewInstagramClient(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *InstagramClient {
	return &InstagramClient{
		baseURL: cfg.GraphURL(),
		httpClient: &http.Client{
			Timeout: cfg.Instagram.RequestTimeout,
		},
		logger:     log,
		metrics:    m,
		identities: make(map[string]pageIdentity),
	}
}

// apiError is the error envelope the Graph API returns on failure
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ReplyToComment posts a public reply under the given comment
func (c *InstagramClient) ReplyToComment(ctx context.Context, commentID, text, accessToken string) error {
	endpoint := fmt.Sprintf("%s/%s/replies", c.baseURL, commentID)

	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", accessToken)

	start := time.Now()
	err := c.post(ctx, endpoint, []byte(form.Encode()), "application/x-www-form-urlencoded")
	c.metrics.RecordGatewayCall("reply_to_comment", callStatus(err), time.Since(start))

	if err != nil {
		return fmt.Errorf("comment reply failed: %w", err)
	}

	c.logger.Debug("Posted comment reply", logger.String("comment_id", commentID))
	return nil
}

// SendPrivateReply sends a private message scoped to the given comment.
// Requires the page identity behind the credential; if that cannot be
// resolved the send fails closed without ever hitting the messages API.
func (c *InstagramClient) SendPrivateReply(ctx context.Context, commentID, text, accessToken string) error {
	identity, err := c.resolveIdentity(ctx, accessToken)
	if err != nil {
		c.metrics.RecordGatewayCall("send_private_reply", "failed", 0)
		return fmt.Errorf("page identity unresolved, private reply not attempted: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, identity.ID)

	body, err := json.Marshal(map[string]interface{}{
		"recipient": map[string]string{"comment_id": commentID},
		"message":   map[string]string{"text": text},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal private reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	err = c.do(req)
	c.metrics.RecordGatewayCall("send_private_reply", callStatus(err), time.Since(start))

	if err != nil {
		return fmt.Errorf("private reply failed: %w", err)
	}

	c.logger.Debug("Sent private reply",
		logger.String("comment_id", commentID),
		logger.String("page_id", identity.ID),
	)
	return nil
}

// PageUsername returns the business-account username behind a credential.
// The ingress uses it to skip the account's own comments.
func (c *InstagramClient) PageUsername(ctx context.Context, accessToken string) (string, error) {
	identity, err := c.resolveIdentity(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return identity.Username, nil
}

// resolveIdentity looks up (and caches) the page behind an access token
func (c *InstagramClient) resolveIdentity(ctx context.Context, accessToken string) (pageIdentity, error) {
	c.mu.Lock()
	if identity, ok := c.identities[accessToken]; ok {
		c.mu.Unlock()
		return identity, nil
	}
	c.mu.Unlock()

	endpoint := fmt.Sprintf("%s/me?fields=id,username&access_token=%s", c.baseURL, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pageIdentity{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pageIdentity{}, fmt.Errorf("identity lookup failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return pageIdentity{}, fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return pageIdentity{}, platformError(resp.StatusCode, respBody)
	}

	var identity pageIdentity
	if err := json.Unmarshal(respBody, &identity); err != nil {
		return pageIdentity{}, fmt.Errorf("failed to parse identity response: %w", err)
	}
	if identity.ID == "" {
		return pageIdentity{}, fmt.Errorf("identity response missing page id")
	}

	c.mu.Lock()
	c.identities[accessToken] = identity
	c.mu.Unlock()

	return identity, nil
}

func (c *InstagramClient) post(ctx context.Context, endpoint string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(req)
}

func (c *InstagramClient) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return platformError(resp.StatusCode, respBody)
	}

	return nil
}

// platformError extracts the Graph API error message, falling back to the
// raw body when the envelope is absent.
func platformError(status int, body []byte) error {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("platform error (status %d, code %d): %s",
			status, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("platform error (status %d): %s", status, string(body))
}

func callStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
