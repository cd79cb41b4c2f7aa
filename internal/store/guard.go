package store

import (
	"webgen-bot/internal/common/errors"
)

// Tables the bot must never write to. The lines table is owned by the
// messaging platform integration.
var readOnlyTables = map[string]bool{
	"lines": true,
}

var writeOperations = map[string]bool{
	"insert": true,
	"update": true,
	"delete": true,
	"upsert": true,
}

// Guard blocks write statements against read-only tables. A violation is
// logged and returned as an error in every mode so it surfaces in
// development and never reaches the database in production.
type Guard struct {
	production bool
	logger     Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewGuard(production bool, log Logger) *Guard {
	return &Guard{production: production, logger: log}
}

// ValidateTableAccess returns nil when the operation may proceed.
func (g *Guard) ValidateTableAccess(table, operation string) error {
	if !readOnlyTables[table] || !writeOperations[operation] {
		return nil
	}

	g.logger.Error("blocked write to read-only table", map[string]interface{}{
		"table":      table,
		"operation":  operation,
		"production": g.production,
	})
	return errors.NewReadOnlyTableViolationError(table, operation)
}

// IsReadOnlyTable reports whether writes to the table are forbidden.
func IsReadOnlyTable(table string) bool {
	return readOnlyTables[table]
}

// ReadOnlyTables lists the protected tables.
func ReadOnlyTables() []string {
	out := make([]string, 0, len(readOnlyTables))
	for t := range readOnlyTables {
		out = append(out, t)
	}
	return out
}
