package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

//go:embed schema.sql
var SchemaSQL string

// SchemaTables are the tables created by EnsureSchema.
var SchemaTables = []string{"workout", "workout_exercise", "workout_set"}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the workout tables and indexes, if missing.
func EnsureSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.Debugf("schema ensured, tables: %v", SchemaTables)
	return nil
}
