package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tindim/tindim/models"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) CreateEvent(ctx context.Context, event *models.FeedbackEvent) error {
	query := `
		INSERT INTO feedback_events (id, subscriber_id, type, score, comment, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.SubscriberID, event.Type, event.Score,
		event.Comment, event.Resolved, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback event: %w", err)
	}
	return nil
}

// ListUnresolved returns open feedback events of a given type, newest first.
func (r *FeedbackRepository) ListUnresolved(ctx context.Context, feedbackType models.FeedbackType, limit int) ([]models.FeedbackEvent, error) {
	query := `
		SELECT id, subscriber_id, type, score, comment, resolved, created_at, resolved_at
		FROM feedback_events
		WHERE type = $1 AND resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, feedbackType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback events: %w", err)
	}
	defer rows.Close()

	var events []models.FeedbackEvent
	for rows.Next() {
		var e models.FeedbackEvent
		if err := rows.Scan(&e.ID, &e.SubscriberID, &e.Type, &e.Score, &e.Comment, &e.Resolved, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback rows: %w", err)
	}
	return events, nil
}

func (r *FeedbackRepository) MarkResolved(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feedback_events SET resolved = TRUE, resolved_at = $2 WHERE id = $1`, eventID, at)
	if err != nil {
		return fmt.Errorf("failed to resolve feedback event %s: %w", eventID, err)
	}
	return nil
}
