package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RuleType determines which reply phases a rule executes
type RuleType string

const (
	RuleTypeCommentDM   RuleType = "comment_dm"
	RuleTypeCommentOnly RuleType = "comment_only"
	RuleTypeDMOnly      RuleType = "dm_only"
)

// Valid reports whether the rule type is a known value
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeCommentDM, RuleTypeCommentOnly, RuleTypeDMOnly:
		return true
	}
	return false
}

// RepliesToComment reports whether rules of this type run the public
// comment-reply phase.
func (t RuleType) RepliesToComment() bool {
	return t == RuleTypeCommentDM || t == RuleTypeCommentOnly
}

// SendsDM reports whether rules of this type run the private-reply phase.
func (t RuleType) SendsDM() bool {
	return t == RuleTypeCommentDM || t == RuleTypeDMOnly
}

// AutomationRule is a stored trigger-to-action automation definition,
// owned by a workspace.
type AutomationRule struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	WorkspaceID    uuid.UUID      `json:"workspace_id" db:"workspace_id"`
	Name           string         `json:"name" db:"name"`
	RuleType       RuleType       `json:"rule_type" db:"rule_type"`
	Keywords       pq.StringArray `json:"keywords" db:"keywords"`
	TargetMediaIDs pq.StringArray `json:"target_media_ids" db:"target_media_ids"`
	Responses      ResponseSet    `json:"responses" db:"responses"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// AppliesToMedia reports whether the rule targets the given media. Rules
// with no target list apply to every post on the account.
func (r *AutomationRule) AppliesToMedia(mediaID string) bool {
	if len(r.TargetMediaIDs) == 0 {
		return true
	}
	if mediaID == "" {
		return false
	}
	for _, id := range r.TargetMediaIDs {
		if id == mediaID {
			return true
		}
	}
	return false
}

// ResponseSet is the canonical response bundle for a rule: the pool of
// public comment replies and the pool of private replies.
type ResponseSet struct {
	CommentResponses []string `json:"responses,omitempty"`
	DMResponses      []string `json:"dmResponses,omitempty"`
}

// IsEmpty reports whether the bundle holds no responses at all
func (s ResponseSet) IsEmpty() bool {
	return len(s.CommentResponses) == 0 && len(s.DMResponses) == 0
}

// responseDoc mirrors the historical on-disk layouts of the responses
// column. Older writers nested the bundle under "action"; "responses" at
// the top level appears either as a flat array or as an object wrapping
// a "responses" array.
type responseDoc struct {
	Action      *responseActionDoc `json:"action,omitempty"`
	Responses   json.RawMessage    `json:"responses,omitempty"`
	DMResponses []string           `json:"dmResponses,omitempty"`
}

type responseActionDoc struct {
	Responses   []string `json:"responses,omitempty"`
	DMResponses []string `json:"dmResponses,omitempty"`
}

// NormalizeResponses folds the three historical response-bundle layouts
// into a canonical ResponseSet. Called once when a rule is loaded; the
// shapes never reach the dispatch path.
func NormalizeResponses(data []byte) (ResponseSet, error) {
	var set ResponseSet

	if len(data) == 0 {
		return set, nil
	}

	var doc responseDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return set, fmt.Errorf("failed to parse response bundle: %w", err)
	}

	if doc.Action != nil {
		set.CommentResponses = doc.Action.Responses
		set.DMResponses = doc.Action.DMResponses
	}

	if len(set.CommentResponses) == 0 && len(doc.Responses) > 0 {
		// Flat array first, then the object-wrapped variant.
		var flat []string
		if err := json.Unmarshal(doc.Responses, &flat); err == nil {
			set.CommentResponses = flat
		} else {
			var wrapped struct {
				Responses []string `json:"responses"`
			}
			if err := json.Unmarshal(doc.Responses, &wrapped); err != nil {
				return set, fmt.Errorf("unrecognized responses layout: %w", err)
			}
			set.CommentResponses = wrapped.Responses
		}
	}

	if len(set.DMResponses) == 0 {
		set.DMResponses = doc.DMResponses
	}

	return set, nil
}

// Scan implements sql.Scanner. Legacy layouts are normalized here so the
// rest of the repository only ever sees the canonical form.
func (s *ResponseSet) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported responses column type %T", value)
	}

	set, err := NormalizeResponses(bytes)
	if err != nil {
		return err
	}

	*s = set
	return nil
}

// Value implements driver.Valuer. Writes always use the canonical layout.
func (s ResponseSet) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// CreateRuleRequest represents the request to create a rule
type CreateRuleRequest struct {
	Name           string   `json:"name" validate:"required"`
	RuleType       RuleType `json:"rule_type" validate:"required,oneof=comment_dm comment_only dm_only"`
	Keywords       []string `json:"keywords" validate:"required,min=1,dive,required"`
	TargetMediaIDs []string `json:"target_media_ids,omitempty"`
	Responses      []string `json:"responses,omitempty"`
	DMResponses    []string `json:"dm_responses,omitempty"`
}

// UpdateRuleRequest represents the request to update a rule
type UpdateRuleRequest struct {
	Name           *string   `json:"name,omitempty"`
	Keywords       *[]string `json:"keywords,omitempty"`
	TargetMediaIDs *[]string `json:"target_media_ids,omitempty"`
	Responses      *[]string `json:"responses,omitempty"`
	DMResponses    *[]string `json:"dm_responses,omitempty"`
}
