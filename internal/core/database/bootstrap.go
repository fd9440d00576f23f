package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed scripts/*.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the sessions and leaderboard tables unless the
// meta table already records the current schema version.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, d dialect) error {
	ctxBoot, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	var version int
	err := db.QueryRowContext(ctxBoot, `SELECT COALESCE(MAX(version), 0) FROM guardian_meta`).Scan(&version)
	if err == nil && version >= schemaVersion {
		return nil
	}
	// A missing meta table surfaces as an error here; the script creates it.
	return runBootstrap(ctxBoot, db, d)
}

func runBootstrap(ctx context.Context, db *sql.DB, d dialect) error {
	sqlBytes, err := bootstrapFS.ReadFile(d.script)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.script, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}
