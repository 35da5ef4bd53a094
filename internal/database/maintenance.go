package database

import (
	"context"
	"fmt"
	"time"

	"homenet-monitor/internal/models"
)

// Prune deletes rows recorded before olderThan from both tables. Each delete
// is its own statement; rows younger than the cutoff are never touched.
func (db *DB) Prune(ctx context.Context, olderThan time.Time) (models.PruneResult, error) {
	var result models.PruneResult
	cutoff := toMillis(olderThan)

	res, err := db.ExecContext(ctx, `DELETE FROM pings WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("prune pings: %w", err)
	}
	result.Pings, _ = res.RowsAffected()

	res, err = db.ExecContext(ctx, `DELETE FROM traffic WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("prune traffic: %w", err)
	}
	result.Traffic, _ = res.RowsAffected()

	return result, nil
}
