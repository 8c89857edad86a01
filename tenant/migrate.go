package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migration is one ordered step applied to a freshly opened tenant store.
type Migration struct {
	Version int
	SQL     string
}

// Migrations is the ordered list embedded in the binary; every tenant store
// is brought from whatever version it is at up to the last entry here.
var Migrations = []Migration{
	{Version: 1, SQL: `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
INSERT INTO schema_version (version) SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM schema_version);
`},
	{Version: 2, SQL: `
CREATE TABLE IF NOT EXISTS mutation_journal (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	operation  TEXT NOT NULL,
	payload    TEXT NOT NULL,
	version    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mutation_journal_version ON mutation_journal(version);
`},
	{Version: 3, SQL: `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`},
}

// currentSchemaVersion reads the scalar schema version, 0 if the bookkeeping
// table itself does not exist yet (a brand new store file).
func currentSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case isNoSuchTable(err):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migrate: read schema version: %w", err)
	}
	return version, nil
}

func isNoSuchTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column")
}

// Run brings db up to the last migration in Migrations, each migration in
// its own transaction; a failure aborts that migration's transaction and
// propagates to the caller (and to the Tenant Store Manager's open call).
func Run(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate: begin v%d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate: apply v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE schema_version SET version = ?`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate: record v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate: commit v%d: %w", m.Version, err)
		}
	}

	return nil
}
