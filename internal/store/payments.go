package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"webgen-bot/internal/common/errors"
)

// CreatePaymentRecord persists a checkout attempt.
func (s *Store) CreatePaymentRecord(ctx context.Context, userID, contactID, planID, status string) (string, error) {
	id := uuid.New().String()
	if err := s.exec(ctx, "payments", "insert",
		`INSERT INTO payments (id, user_id, contact_id, plan_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		id, userID, contactID, planID, status,
	); err != nil {
		return "", err
	}
	return id, nil
}

// LatestPaymentStatus finds the most recent payment for the user, falling
// back across the identifier columns older records used.
func (s *Store) LatestPaymentStatus(ctx context.Context, userID, contactID string) (string, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"user_id", userID},
		{"id", userID},
		{"contact_id", contactID},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		var status string
		err := s.db.QueryRow(ctx,
			`SELECT status FROM payments WHERE `+l.column+` = $1 ORDER BY created_at DESC LIMIT 1`,
			l.value,
		).Scan(&status)
		if err == nil {
			return status, nil
		}
		if err != sql.ErrNoRows {
			return "", errors.NewQueryExecutionFailedError("LatestPaymentStatus", err)
		}
	}
	return "", errors.NewRecordNotFoundError("payment", userID)
}
