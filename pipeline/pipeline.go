// Package pipeline implements the Write Pipeline (spec.md §4.E): the fixed
// transactional envelope every domain write executes — begin, mutate,
// allocate version, journal, commit, notify — so that a version and its
// journal row are never visible to a client unless the commit they belong
// to actually succeeded.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"deltasync/apperror"
	"deltasync/journal"
	"deltasync/notifybus"
	"deltasync/oracle"
	"deltasync/tenant"
)

// Mutation is one entity-level effect a domain handler wants journaled.
// Payload must already be serialized to the canonical JSON the client will
// upsert or delete by; for OpDelete it is the literal "{}".
type Mutation struct {
	TableName string
	EntityID  string
	Operation journal.Op
	Payload   string
}

// Result is returned to the domain handler after a successful write.
type Result struct {
	Version uint64
	Rows    []journal.Row
}

// Pipeline wires the Tenant Store Manager, Version Oracle, and Notification
// Bus into the single sequence every domain write must follow.
type Pipeline struct {
	stores  *tenant.Manager
	oracle  *oracle.Oracle
	bus     *notifybus.Bus
	log     *logrus.Entry
}

// New constructs a Pipeline over the given collaborators.
func New(stores *tenant.Manager, vo *oracle.Oracle, bus *notifybus.Bus, log *logrus.Logger) *Pipeline {
	return &Pipeline{stores: stores, oracle: vo, bus: bus, log: log.WithField("component", "write_pipeline")}
}

// MutateFunc performs the domain-specific work inside the open transaction
// and returns the journal rows describing what it did. It must not commit or
// roll back the transaction itself — the pipeline owns that.
type MutateFunc func(ctx context.Context, tx *sql.Tx) ([]Mutation, error)

// Execute runs one write through the full pipeline:
//  1. open the tenant store
//  2. begin a transaction
//  3. run fn to perform the domain mutation(s)
//  4. allocate one version from the oracle
//  5. append a journal row per mutation, all sharing that version
//  6. commit
//  7. on commit success, notify; on any earlier failure, roll back and never notify
func (p *Pipeline) Execute(ctx context.Context, tenantID string, fn MutateFunc) (*Result, error) {
	store, err := p.stores.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tx, unlock, err := store.BeginWrite(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, "begin transaction", err)
	}
	defer unlock()
	defer func() { _ = tx.Rollback() }()

	mutations, err := fn(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(mutations) == 0 {
		return nil, fmt.Errorf("pipeline: mutate function produced no mutations")
	}

	version, err := p.oracle.Next(ctx, tenantID)
	if err != nil {
		// Oracle failure is fatal-to-this-request; the deferred Rollback
		// above undoes the mutation, and no journal row is ever written.
		return nil, err
	}

	rows := make([]journal.Row, 0, len(mutations))
	for _, m := range mutations {
		if err := journal.Append(ctx, tx, m.TableName, m.EntityID, m.Operation, m.Payload, version); err != nil {
			return nil, apperror.Wrap(apperror.StoreUnavailable, "append journal row", err)
		}
		rows = append(rows, journal.Row{
			TableName: m.TableName,
			EntityID:  m.EntityID,
			Operation: m.Operation,
			Payload:   m.Payload,
			Version:   version,
		})
	}

	if err := tx.Commit(); err != nil {
		// No one must ever be told a version exists that isn't in the
		// journal: a failed commit means no notification, full stop.
		return nil, apperror.Wrap(apperror.StoreUnavailable, "commit transaction", err)
	}

	p.bus.Notify(ctx, tenantID, version)

	p.log.WithField("tenant_id", tenantID).WithField("version", version).
		WithField("rows", len(rows)).Debug("write committed")

	return &Result{Version: version, Rows: rows}, nil
}
