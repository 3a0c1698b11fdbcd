package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookPayload is the envelope Meta pushes to the event endpoint
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one account's batch of changes within a delivery
type WebhookEntry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Changes   []WebhookChange   `json:"changes,omitempty"`
	Messaging []json.RawMessage `json:"messaging,omitempty"`
}

// WebhookChange is a single field change within an entry
type WebhookChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// CommentValue is the value payload of a "comments" change
type CommentValue struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	From     CommentAuthor `json:"from"`
	Media    *CommentMedia `json:"media,omitempty"`
	ParentID string        `json:"parent_id,omitempty"`
}

// CommentAuthor identifies who wrote the comment
type CommentAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// CommentMedia identifies the post the comment was left on
type CommentMedia struct {
	ID string `json:"id"`
}

// MediaID returns the post the comment belongs to. Newer payloads carry a
// media object; older ones only set parent_id.
func (v *CommentValue) MediaID() string {
	if v.Media != nil && v.Media.ID != "" {
		return v.Media.ID
	}
	return v.ParentID
}

// CommentEvent is the structured comment the ingress hands to the engine.
// Never persisted; only its outcome is, through AutomationLog.
type CommentEvent struct {
	CommentID string
	MediaID   string
	UserID    string
	Username  string
	Text      string
}

// PlatformEvent is a persisted non-comment webhook change, kept for
// analytics (new media, followers, likes, mentions, story insights, live
// comments, and anything unrecognized).
type PlatformEvent struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	WorkspaceID *uuid.UUID `json:"workspace_id,omitempty" db:"workspace_id"`
	PageID      string     `json:"page_id" db:"page_id"`
	Field       string     `json:"field" db:"field"`
	Payload     JSONB      `json:"payload" db:"payload"`
	ReceivedAt  time.Time  `json:"received_at" db:"received_at"`
}
