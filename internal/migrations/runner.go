// Package migrations applies the embedded SQL schema at startup.
//
// SQL files are embedded at compile time so the binary is self-contained.
// Applied files are tracked in the schema_migrations table, making Run
// idempotent: versions already recorded there are skipped on later starts.
//
// File naming convention: NNN_description.sql (lexicographic execution
// order). 000_migrations_table.sql must stay first so the tracking table
// exists before any other migration runs.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

//go:embed *.sql
var sqlFiles embed.FS

// migration is one embedded SQL file; the filename doubles as the version key.
type migration struct {
	version string
	sql     string
}

// Run applies all pending migrations to the database in lexicographic order.
// Each pending migration runs in its own transaction; on success its version
// is recorded in schema_migrations within the same transaction.
func Run(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("migrations: ensure tracking table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return fmt.Errorf("migrations: read applied versions: %w", err)
	}

	all, err := embeddedMigrations()
	if err != nil {
		return fmt.Errorf("migrations: load files: %w", err)
	}

	pending := 0
	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if err := apply(ctx, pool, m); err != nil {
			return fmt.Errorf("migrations: apply %q: %w", m.version, err)
		}
		log.WithField("version", m.version).Info("migration applied")
		pending++
	}

	if pending == 0 {
		log.Debug("schema is up to date")
	} else {
		log.WithField("count", pending).Info("migrations applied")
	}
	return nil
}

// requiredTables are the business tables every healthy deployment has.
var requiredTables = []string{"trips", "timeline_entries", "stops", "segments"}

// CheckSchema verifies that the business tables exist in the public schema.
// A lightweight sanity check, not a structural diff.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1::text[])`,
		requiredTables)
	if err != nil {
		return fmt.Errorf("migrations: check schema: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool, len(requiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("migrations: check schema: scan: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrations: check schema: %w", err)
	}

	var missing []string
	for _, t := range requiredTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("migrations: required tables missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// appliedVersions returns the migration filenames already recorded in
// schema_migrations.
func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		seen[v] = true
	}
	return seen, rows.Err()
}

// embeddedMigrations reads the embedded SQL files in lexicographic order.
// embed.FS.ReadDir guarantees this ordering.
func embeddedMigrations() ([]migration, error) {
	dirEntries, err := sqlFiles.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embedded dir: %w", err)
	}

	out := make([]migration, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".sql") {
			continue
		}
		content, err := sqlFiles.ReadFile(de.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", de.Name(), err)
		}
		out = append(out, migration{version: de.Name(), sql: string(content)})
	}
	return out, nil
}

// apply executes a single migration and records its version, both inside one
// transaction.
func apply(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("exec sql: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit(ctx)
}
