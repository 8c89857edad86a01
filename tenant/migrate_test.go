package tenant

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunAppliesAllMigrations(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version))
	require.Equal(t, len(Migrations), version)

	for _, table := range []string{"mutation_journal", "projects"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "expected table %s to exist", table)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db))
	require.NoError(t, Run(ctx, db))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version))
	require.Equal(t, len(Migrations), version)
}

func TestCurrentSchemaVersionOnFreshDB(t *testing.T) {
	db := openMemDB(t)
	version, err := currentSchemaVersion(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, 0, version)
}
