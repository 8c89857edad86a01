// Package journal implements the Mutation Journal (spec.md §4.D): the
// per-tenant append-only log of entity changes, persisted in the tenant
// store inside the same transaction as the data change it describes.
package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Op enumerates the mutation kinds a journal row can record.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpPatch  Op = "PATCH"
)

// Row is one mutation journal entry. Payload is opaque JSON to the engine;
// for deletes it is the literal "{}".
type Row struct {
	Seq       int64  `json:"id"`
	TableName string `json:"table_name"`
	EntityID  string `json:"entity_id"`
	Operation Op     `json:"operation"`
	Payload   string `json:"payload"`
	Version   uint64 `json:"version"`
}

// Append inserts one journal row within an already-open transaction. Callers
// append as many rows as they need at the same version before committing —
// spec §4.E allows a single write to mutate several entities atomically.
func Append(ctx context.Context, tx *sql.Tx, tableName, entityID string, op Op, payload string, version uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO mutation_journal (table_name, entity_id, operation, payload, version) VALUES (?, ?, ?, ?, ?)`,
		tableName, entityID, string(op), payload, version,
	)
	if err != nil {
		return fmt.Errorf("journal: append row: %w", err)
	}
	return nil
}

// ReadSince returns every row with version > since, ordered ascending by
// version. It never blocks and is unbounded by design (pagination is
// explicitly not a core concern per spec §4.D).
func ReadSince(ctx context.Context, db *sql.DB, since uint64) ([]Row, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT seq, table_name, entity_id, operation, payload, version
		 FROM mutation_journal WHERE version > ? ORDER BY version ASC, seq ASC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: read since %d: %w", since, err)
	}
	defer rows.Close()

	result := make([]Row, 0)
	for rows.Next() {
		var r Row
		var op string
		if err := rows.Scan(&r.Seq, &r.TableName, &r.EntityID, &op, &r.Payload, &r.Version); err != nil {
			return nil, fmt.Errorf("journal: scan row: %w", err)
		}
		r.Operation = Op(op)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate rows: %w", err)
	}
	return result, nil
}
