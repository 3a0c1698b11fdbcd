package postgres

import (
	"context"
	"fmt"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/google/uuid"
)

// EventRepository persists non-comment webhook changes for analytics
type EventRepository struct {
	db DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create persists a platform event
func (r *EventRepository) Create(ctx context.Context, event *models.PlatformEvent) error {
	query := `
		INSERT INTO platform_events (workspace_id, page_id, field, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, received_at`

	err := r.db.QueryRowContext(
		ctx, query,
		event.WorkspaceID, event.PageID, event.Field, event.Payload,
	).Scan(&event.ID, &event.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to create platform event: %w", err)
	}

	return nil
}

// ListByWorkspace retrieves recent platform events for a workspace
func (r *EventRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*models.PlatformEvent, error) {
	query := `
		SELECT id, workspace_id, page_id, field, payload, received_at
		FROM platform_events
		WHERE workspace_id = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform events: %w", err)
	}
	defer rows.Close()

	var events []*models.PlatformEvent
	for rows.Next() {
		event := &models.PlatformEvent{}
		err := rows.Scan(
			&event.ID, &event.WorkspaceID, &event.PageID,
			&event.Field, &event.Payload, &event.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan platform event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
