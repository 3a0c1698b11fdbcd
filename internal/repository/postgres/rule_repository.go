package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = fmt.Errorf("not found")

// RuleRepository handles automation rule database operations
type RuleRepository struct {
	db DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, workspace_id, name, rule_type, keywords, target_media_ids, responses, is_active, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*models.AutomationRule, error) {
	rule := &models.AutomationRule{}
	err := row.Scan(
		&rule.ID, &rule.WorkspaceID, &rule.Name, &rule.RuleType,
		&rule.Keywords, &rule.TargetMediaIDs, &rule.Responses,
		&rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	return rule, err
}

// Create creates a new rule
func (r *RuleRepository) Create(ctx context.Context, workspaceID uuid.UUID, req *models.CreateRuleRequest) (*models.AutomationRule, error) {
	query := `
		INSERT INTO automation_rules (
			workspace_id, name, rule_type, keywords, target_media_ids, responses, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING ` + ruleColumns

	responses := models.ResponseSet{
		CommentResponses: req.Responses,
		DMResponses:      req.DMResponses,
	}

	rule, err := scanRule(r.db.QueryRowContext(
		ctx, query,
		workspaceID, req.Name, req.RuleType,
		pq.StringArray(req.Keywords), pq.StringArray(req.TargetMediaIDs), responses,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return rule, nil
}

// GetByID retrieves a rule scoped to a workspace
func (r *RuleRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.AutomationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE workspace_id = $1 AND id = $2`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, workspaceID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// List retrieves rules for a workspace with optional active filtering
func (r *RuleRepository) List(ctx context.Context, workspaceID uuid.UUID, isActive *bool, limit, offset int) ([]*models.AutomationRule, int64, error) {
	countQuery := `
		SELECT COUNT(*) FROM automation_rules
		WHERE workspace_id = $1
		AND ($2::boolean IS NULL OR is_active = $2)`

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, workspaceID, isActive).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE workspace_id = $1
		AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, isActive, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, total, rows.Err()
}

// ListActive retrieves the active rules for a workspace in storage order.
// Evaluation order is stable for a fixed rule set but carries no priority
// semantics.
func (r *RuleRepository) ListActive(ctx context.Context, workspaceID uuid.UUID) ([]*models.AutomationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE workspace_id = $1 AND is_active = true
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// Update updates a rule's content fields and bumps updated_at
func (r *RuleRepository) Update(ctx context.Context, workspaceID, id uuid.UUID, req *models.UpdateRuleRequest) (*models.AutomationRule, error) {
	query := `
		UPDATE automation_rules
		SET name = COALESCE($3, name),
		    keywords = COALESCE($4, keywords),
		    target_media_ids = COALESCE($5, target_media_ids),
		    responses = COALESCE($6, responses),
		    updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING ` + ruleColumns

	var keywords, targets interface{}
	if req.Keywords != nil {
		keywords = pq.StringArray(*req.Keywords)
	}
	if req.TargetMediaIDs != nil {
		targets = pq.StringArray(*req.TargetMediaIDs)
	}

	var responses interface{}
	if req.Responses != nil || req.DMResponses != nil {
		set := models.ResponseSet{}
		if req.Responses != nil {
			set.CommentResponses = *req.Responses
		}
		if req.DMResponses != nil {
			set.DMResponses = *req.DMResponses
		}
		responses = set
	}

	rule, err := scanRule(r.db.QueryRowContext(
		ctx, query,
		workspaceID, id, req.Name, keywords, targets, responses,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	return rule, nil
}

// SetActive toggles a rule's is_active flag, bumping updated_at
func (r *RuleRepository) SetActive(ctx context.Context, workspaceID, id uuid.UUID, active bool) error {
	query := `
		UPDATE automation_rules
		SET is_active = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, workspaceID, id, active)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete deletes a rule
func (r *RuleRepository) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	query := `DELETE FROM automation_rules WHERE workspace_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, workspaceID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// CountActiveByWorkspace returns how many active rules a workspace has.
// Used by the legacy resolver fallback.
func (r *RuleRepository) CountActiveByWorkspace(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM automation_rules WHERE workspace_id = $1 AND is_active = true`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active rules: %w", err)
	}

	return count, nil
}
