package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"rently-backend/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates missing tables and indexes. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("EnsureSchema", "schema.sql")
	_, err := db.ExecContext(ctx, schemaSQL)
	logger.DatabaseResult("EnsureSchema", 0, err)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
