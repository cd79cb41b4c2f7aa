// Package store is the persistence boundary: contacts, users, plans, pages,
// payments, and conversation history on PostgreSQL.
package store

import (
	"strings"

	"webgen-bot/internal/common/database"
	"webgen-bot/internal/common/logger"
)

type Store struct {
	db     *database.PostgresClient
	guard  *Guard
	logger logger.Logger
}

func New(db *database.PostgresClient, guard *Guard, log logger.Logger) *Store {
	return &Store{
		db:     db,
		guard:  guard,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// SanitizePhone keeps digits only, capped at 15, matching how the messaging
// platform stores phone numbers.
func SanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 15 {
				break
			}
		}
	}
	return b.String()
}
