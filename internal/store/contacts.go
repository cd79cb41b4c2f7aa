package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"webgen-bot/internal/common/errors"
)

// LineIDByNumber resolves the internal id of a bot line. The lines table is
// read-only for the bot.
func (s *Store) LineIDByNumber(ctx context.Context, botNumber string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM lines WHERE number = $1`,
		SanitizePhone(botNumber),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.NewRecordNotFoundError("line", botNumber)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("LineIDByNumber", err)
	}
	return id, nil
}

// ContactByPhone returns the most recent contact for a phone within a line.
func (s *Store) ContactByPhone(ctx context.Context, phone, lineID string) (*Contact, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, phone, COALESCE(name, ''), line_id, created_at
		   FROM contacts
		  WHERE phone = $1 AND line_id = $2
		  ORDER BY created_at DESC
		  LIMIT 1`,
		SanitizePhone(phone), lineID,
	)

	var c Contact
	if err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.LineID, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewRecordNotFoundError("contact", phone)
		}
		return nil, errors.NewQueryExecutionFailedError("ContactByPhone", err)
	}
	return &c, nil
}

// ContactExistsInLine reports whether the phone has a contact attached to the
// line. An orphan contact without a line gets adopted into it, mirroring how
// contacts created by older integrations looked.
func (s *Store) ContactExistsInLine(ctx context.Context, phone, lineID string) (bool, error) {
	if _, err := s.ContactByPhone(ctx, phone, lineID); err == nil {
		return true, nil
	} else if stdErr, ok := err.(*errors.StandardError); !ok || stdErr.Code != errors.ErrCodeRecordNotFound {
		return false, err
	}

	// Orphan lookup: same phone, no line assigned yet.
	row := s.db.QueryRow(ctx,
		`SELECT id FROM contacts
		  WHERE phone = $1 AND line_id IS NULL
		  ORDER BY created_at DESC
		  LIMIT 1`,
		SanitizePhone(phone),
	)
	var orphanID string
	if err := row.Scan(&orphanID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.NewQueryExecutionFailedError("ContactExistsInLine", err)
	}

	if err := s.exec(ctx, "contacts", "update",
		`UPDATE contacts SET line_id = $1 WHERE id = $2`,
		lineID, orphanID,
	); err != nil {
		s.logger.Warn("failed to adopt orphan contact", map[string]interface{}{
			"contactId": orphanID,
			"error":     fmt.Sprint(err),
		})
		return false, nil
	}
	return true, nil
}

// CreateContact inserts a contact in the line and returns its id.
func (s *Store) CreateContact(ctx context.Context, phone, name, lineID string) (string, error) {
	id := uuid.New().String()
	if name == "" {
		p := SanitizePhone(phone)
		suffix := p
		if len(p) > 4 {
			suffix = p[len(p)-4:]
		}
		name = "Usuario " + suffix
	}
	if err := s.exec(ctx, "contacts", "insert",
		`INSERT INTO contacts (id, phone, name, line_id, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		id, SanitizePhone(phone), name, lineID,
	); err != nil {
		return "", err
	}
	return id, nil
}

// exec routes writes through the read-only table guard.
func (s *Store) exec(ctx context.Context, table, operation, query string, args ...interface{}) error {
	if err := s.guard.ValidateTableAccess(table, operation); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return errors.NewQueryExecutionFailedError(operation+" "+table, err)
	}
	return nil
}
