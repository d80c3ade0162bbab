package sqlite

import (
	"context"
	"fmt"
	"time"
)

const cleanupBatchSize = 1000

// CleanupOlderThan deletes events older than maxAge in batches and returns
// how many were deleted.
func (s *SQLiteStorage) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("max age must be positive (got %v)", maxAge)
	}
	cutoff := time.Now().Add(-maxAge).UTC()

	totalDeleted := 0
	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM registry_events
			WHERE id IN (
				SELECT id FROM registry_events
				WHERE timestamp < ?
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, cutoff, cleanupBatchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to delete old registry events: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		if rowsAffected < cleanupBatchSize {
			return totalDeleted, nil
		}
	}
}
