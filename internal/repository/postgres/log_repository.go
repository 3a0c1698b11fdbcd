package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/google/uuid"
)

// LogRepository handles automation log database operations. Logs are an
// append-only audit trail; there is no update path.
type LogRepository struct {
	db DB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db DB) *LogRepository {
	return &LogRepository{db: db}
}

// Create appends a log entry
func (r *LogRepository) Create(ctx context.Context, log *models.AutomationLog) error {
	query := `
		INSERT INTO automation_logs (
			rule_id, workspace_id, action_type, trigger_text, response_text,
			target_user_id, target_username, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx, query,
		log.RuleID, log.WorkspaceID, log.ActionType, log.TriggerText, log.ResponseText,
		log.TargetUserID, log.TargetUsername, log.Status, log.Error,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create automation log: %w", err)
	}

	return nil
}

// List retrieves log entries for a workspace, newest first
func (r *LogRepository) List(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*models.AutomationLog, int64, error) {
	countQuery := `SELECT COUNT(*) FROM automation_logs WHERE workspace_id = $1`

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, workspaceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	query := `
		SELECT id, rule_id, workspace_id, action_type, trigger_text, response_text,
		       target_user_id, target_username, status, error, created_at
		FROM automation_logs
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AutomationLog
	for rows.Next() {
		entry := &models.AutomationLog{}
		err := rows.Scan(
			&entry.ID, &entry.RuleID, &entry.WorkspaceID, &entry.ActionType,
			&entry.TriggerText, &entry.ResponseText, &entry.TargetUserID,
			&entry.TargetUsername, &entry.Status, &entry.Error, &entry.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, entry)
	}

	return logs, total, rows.Err()
}

// DeleteOlderThan removes log entries created before the cutoff, returning
// how many were deleted. Used by the retention worker.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM automation_logs WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune logs: %w", err)
	}

	return result.RowsAffected()
}
