package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"sierra-preorder/db"
	"sierra-preorder/logger"
)

// Embed migrations into the binary so `sierra-preorder migrate` works
// regardless of the current working directory.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// applyMigrations runs every embedded migration in name order. Each file is idempotent,
// so this is safe on every start.
func applyMigrations(ctx context.Context, log *logger.Logger) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		log.Info("migration_applied", "migration applied", "file", name)
	}
	return nil
}
