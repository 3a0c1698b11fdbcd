package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType identifies which reply phase a log entry records
type ActionType string

const (
	ActionTypeComment ActionType = "comment"
	ActionTypeDM      ActionType = "dm"
)

// ActionStatus is the outcome of an attempted action
type ActionStatus string

const (
	ActionStatusSent   ActionStatus = "sent"
	ActionStatusFailed ActionStatus = "failed"
)

// AutomationLog records one attempted reply phase for a triggered rule.
// Rows are append-only; a comment_dm rule produces up to two per comment.
type AutomationLog struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	RuleID         uuid.UUID    `json:"rule_id" db:"rule_id"`
	WorkspaceID    uuid.UUID    `json:"workspace_id" db:"workspace_id"`
	ActionType     ActionType   `json:"action_type" db:"action_type"`
	TriggerText    string       `json:"trigger_text" db:"trigger_text"`
	ResponseText   string       `json:"response_text" db:"response_text"`
	TargetUserID   string       `json:"target_user_id" db:"target_user_id"`
	TargetUsername string       `json:"target_username" db:"target_username"`
	Status         ActionStatus `json:"status" db:"status"`
	Error          *string      `json:"error,omitempty" db:"error"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}
