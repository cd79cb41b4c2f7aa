package store

import (
	"context"

	"github.com/google/uuid"

	"webgen-bot/internal/common/errors"
)

// AppendTurn stores one side of an exchange for a contact.
func (s *Store) AppendTurn(ctx context.Context, contactID, role, content string) error {
	return s.exec(ctx, "conversations", "insert",
		`INSERT INTO conversations (id, contact_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New().String(), contactID, role, content,
	)
}

// RecentHistory returns the last n turns for a contact in chronological
// order.
func (s *Store) RecentHistory(ctx context.Context, contactID string, n int) ([]Turn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT role, content FROM conversations
		  WHERE contact_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		contactID, n,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("RecentHistory", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, errors.NewQueryExecutionFailedError("RecentHistory", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("RecentHistory", err)
	}

	// Rows come newest-first, flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
