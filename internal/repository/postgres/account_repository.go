package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/google/uuid"
)

// AccountRepository handles social account database operations
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, workspace_id, platform, page_id, username, access_token, is_primary, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.SocialAccount, error) {
	acct := &models.SocialAccount{}
	err := row.Scan(
		&acct.ID, &acct.WorkspaceID, &acct.Platform, &acct.PageID,
		&acct.Username, &acct.AccessToken, &acct.IsPrimary,
		&acct.CreatedAt, &acct.UpdatedAt,
	)
	return acct, err
}

// Create connects a social account to a workspace. The page ID is unique
// per platform: connecting the same page again replaces the stored
// credential and username.
func (r *AccountRepository) Create(ctx context.Context, workspaceID uuid.UUID, req *models.ConnectAccountRequest) (*models.SocialAccount, error) {
	query := `
		INSERT INTO social_accounts (
			workspace_id, platform, page_id, username, access_token, is_primary
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (platform, page_id) DO UPDATE
		SET workspace_id = EXCLUDED.workspace_id,
		    username = EXCLUDED.username,
		    access_token = EXCLUDED.access_token,
		    is_primary = EXCLUDED.is_primary,
		    updated_at = NOW()
		RETURNING ` + accountColumns

	acct, err := scanAccount(r.db.QueryRowContext(
		ctx, query,
		workspaceID, req.Platform, req.PageID, req.Username, req.AccessToken, req.IsPrimary,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to connect account: %w", err)
	}

	return acct, nil
}

// GetByPageID retrieves the account that owns a platform page
func (r *AccountRepository) GetByPageID(ctx context.Context, platform, pageID string) (*models.SocialAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM social_accounts
		WHERE platform = $1 AND page_id = $2`

	acct, err := scanAccount(r.db.QueryRowContext(ctx, query, platform, pageID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acct, nil
}

// ListByWorkspace retrieves the accounts connected to a workspace
func (r *AccountRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*models.SocialAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM social_accounts
		WHERE workspace_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}

// ListByPlatform retrieves every account on a platform, primary accounts
// first. Only used by the legacy resolver fallback.
func (r *AccountRepository) ListByPlatform(ctx context.Context, platform string) ([]*models.SocialAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM social_accounts
		WHERE platform = $1
		ORDER BY is_primary DESC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}
