package store

import (
	"context"

	"github.com/google/uuid"

	"webgen-bot/internal/common/errors"
)

// CreatePage persists a generated page and returns its id.
func (s *Store) CreatePage(ctx context.Context, p *Page) (string, error) {
	id := uuid.New().String()
	status := p.Status
	if status == "" {
		status = "Active"
	}
	if err := s.exec(ctx, "pages", "insert",
		`INSERT INTO pages (id, user_id, title, description, content, public_link, status, requirements, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		id, p.UserID, p.Title, p.Description, p.Content, p.PublicLink, status, p.Requirements,
	); err != nil {
		return "", err
	}
	return id, nil
}

// UserPagesCount returns how many pages the user has created.
func (s *Store) UserPagesCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM pages WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("UserPagesCount", err)
	}
	return count, nil
}
