package cli

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/commentpilot/commentpilot/internal/models"
)

// Client is a thin HTTP client for the CommentPilot API
type Client struct {
	baseURL     string
	workspaceID string
	appSecret   string
	httpClient  *http.Client
}

func NewClient(baseURL, workspaceID, appSecret string) *Client {
	return &Client{
		baseURL:     baseURL,
		workspaceID: workspaceID,
		appSecret:   appSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	return resp, nil
}

func (c *Client) workspacePath(suffix string) string {
	return "/api/v1/workspaces/" + c.workspaceID + suffix
}

// RuleListResponse is the paginated rule listing
type RuleListResponse struct {
	Rules    []models.AutomationRule `json:"rules"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

// ListRules retrieves the workspace's rules
func (c *Client) ListRules() (*RuleListResponse, error) {
	resp, err := c.doRequest("GET", c.workspacePath("/rules"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to list rules: %s (status: %d)", string(body), resp.StatusCode)
	}

	var result RuleListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// CreateRule creates a new automation rule
func (c *Client) CreateRule(req *models.CreateRuleRequest) (*models.AutomationRule, error) {
	resp, err := c.doRequest("POST", c.workspacePath("/rules"), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create rule: %s (status: %d)", string(body), resp.StatusCode)
	}

	var rule models.AutomationRule
	if err := json.NewDecoder(resp.Body).Decode(&rule); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &rule, nil
}

// GetRule retrieves a rule by ID
func (c *Client) GetRule(id string) (*models.AutomationRule, error) {
	resp, err := c.doRequest("GET", c.workspacePath("/rules/"+id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get rule: %s (status: %d)", string(body), resp.StatusCode)
	}

	var rule models.AutomationRule
	if err := json.NewDecoder(resp.Body).Decode(&rule); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &rule, nil
}

// EnableRule activates a rule
func (c *Client) EnableRule(id string) error {
	return c.postAction(c.workspacePath("/rules/" + id + "/enable"))
}

// DisableRule deactivates a rule
func (c *Client) DisableRule(id string) error {
	return c.postAction(c.workspacePath("/rules/" + id + "/disable"))
}

func (c *Client) postAction(path string) error {
	resp, err := c.doRequest("POST", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed: %s (status: %d)", string(body), resp.StatusCode)
	}

	return nil
}

// DeleteRule deletes a rule
func (c *Client) DeleteRule(id string) error {
	resp, err := c.doRequest("DELETE", c.workspacePath("/rules/"+id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete rule: %s (status: %d)", string(body), resp.StatusCode)
	}

	return nil
}

// LogListResponse is the paginated automation log listing
type LogListResponse struct {
	Logs     []models.AutomationLog `json:"logs"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

// ListLogs retrieves the workspace's automation logs
func (c *Client) ListLogs(limit int) (*LogListResponse, error) {
	path := c.workspacePath("/logs")
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to list logs: %s (status: %d)", string(body), resp.StatusCode)
	}

	var result LogListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// ListAccounts retrieves the workspace's connected accounts
func (c *Client) ListAccounts() ([]models.SocialAccount, error) {
	resp, err := c.doRequest("GET", c.workspacePath("/accounts"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to list accounts: %s (status: %d)", string(body), resp.StatusCode)
	}

	var result struct {
		Accounts []models.SocialAccount `json:"accounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Accounts, nil
}

// ConnectAccount registers a social account for the workspace
func (c *Client) ConnectAccount(req *models.ConnectAccountRequest) (*models.SocialAccount, error) {
	resp, err := c.doRequest("POST", c.workspacePath("/accounts"), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to connect account: %s (status: %d)", string(body), resp.StatusCode)
	}

	var account models.SocialAccount
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &account, nil
}

// SimulateComment sends a synthetic comment through the webhook endpoint,
// exercising the full pipeline against a running server. The delivery is
// signed when an app secret is configured.
func (c *Client) SimulateComment(pageID, commentID, mediaID, userID, username, text string) error {
	payload := models.WebhookPayload{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:   pageID,
			Time: time.Now().Unix(),
			Changes: []models.WebhookChange{{
				Field: "comments",
				Value: mustMarshal(models.CommentValue{
					ID:    commentID,
					Text:  text,
					From:  models.CommentAuthor{ID: userID, Username: username},
					Media: &models.CommentMedia{ID: mediaID},
				}),
			}},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/webhooks/instagram", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.appSecret != "" {
		mac := hmac.New(sha256.New, []byte(c.appSecret))
		mac.Write(body)
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook rejected the delivery: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	return nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	resp, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API is not healthy (status: %d)", resp.StatusCode)
	}

	return nil
}

func mustMarshal(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
