package db

import (
	"context"
	"fmt"
)

// NextSequence atomically increments and returns the counter for key.
// Counters back all human-facing document numbers (visit, prescription,
// lab test, invoice, payment); the upsert makes concurrent callers see
// distinct values, unlike a find-max-and-increment scan.
func NextSequence(ctx context.Context, q Querier, key string) (int64, error) {
	var value int64
	err := q.QueryRow(ctx, `
		INSERT INTO sequence_counter (key, value) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = sequence_counter.value + 1
		RETURNING value`, key).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", key, err)
	}
	return value, nil
}
