package models

import (
	"time"

	"github.com/google/uuid"
)

// PlatformInstagram is the only platform currently supported
const PlatformInstagram = "instagram"

// SocialAccount maps a platform page to its owning workspace. The page ID
// is captured when the account is connected and is the authoritative
// routing key for inbound webhook entries.
type SocialAccount struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	Platform    string    `json:"platform" db:"platform"`
	PageID      string    `json:"page_id" db:"page_id"`
	Username    string    `json:"username" db:"username"`
	AccessToken string    `json:"-" db:"access_token"`
	IsPrimary   bool      `json:"is_primary" db:"is_primary"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ConnectAccountRequest represents the request to connect a social account
type ConnectAccountRequest struct {
	Platform    string `json:"platform" validate:"required,oneof=instagram"`
	PageID      string `json:"page_id" validate:"required"`
	Username    string `json:"username" validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
	IsPrimary   bool   `json:"is_primary"`
}
