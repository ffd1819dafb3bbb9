package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tindim/tindim/models"
)

type DispatchRepository struct {
	db *sql.DB
}

func NewDispatchRepository(db *sql.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// TryClaim records intent to send for (subscriber, job, date, slot). It
// returns true exactly once per key: the insert hits a unique constraint on
// subsequent attempts and is skipped, which is what keeps overlapping
// scheduler ticks and restarts from double-sending.
func (r *DispatchRepository) TryClaim(ctx context.Context, subscriberID string, job models.DispatchJob, date, slot string) (bool, error) {
	query := `
		INSERT INTO dispatches (id, subscriber_id, job, date, slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subscriber_id, job, date, slot) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), subscriberID, job, date, slot, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim dispatch slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rows == 1, nil
}
