// Package tenant implements the Tenant Store Manager (spec.md §4.A) and the
// Migration Runner (§4.B): lazy-open, migrate, and LRU-cache one embedded
// SQLite database per tenant.
//
// The cache itself is grounded on statemanager.Manager's capacity-bounded
// map-plus-eviction idiom (one mutex guarding a map, evict-oldest on
// overflow), generalized here from "evict the oldest operation record" to
// "evict the least-recently-used tenant store handle, closing it" — which
// needs genuine recency tracking (a handle touched a second ago must outlive
// one untouched for an hour), so the single map scan becomes a proper
// doubly-linked LRU list.
package tenant

import (
	"container/list"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"

	"deltasync/apperror"
)

// Store is one tenant's open handle. Safe for concurrent use by design
// (database/sql pools its own connections); callers never close it directly.
//
// Reads go through DB's pool directly and run concurrently with each other
// and with the active writer, per WAL semantics. Writes must go through
// BeginWrite, which serializes them with writeMu: SQLite WAL permits exactly
// one writer at a time, and letting two transactions race BeginTx would just
// shift that contention onto busy_timeout retries instead of queuing it here.
type Store struct {
	TenantID string
	DB       *sql.DB

	writeMu sync.Mutex
}

// BeginWrite begins a write transaction, serialized against every other
// writer for this store. The returned unlock func must be called exactly
// once, after the transaction has been committed or rolled back.
func (s *Store) BeginWrite(ctx context.Context) (*sql.Tx, func(), error) {
	s.writeMu.Lock()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		s.writeMu.Unlock()
		return nil, nil, err
	}
	return tx, s.writeMu.Unlock, nil
}

// maxStoreConns bounds the read pool per tenant store; SQLite readers are
// cheap under WAL but a connection each still costs a file descriptor.
const maxStoreConns = 8

type entry struct {
	store   *Store
	element *list.Element // element.Value is the tenant_id, for O(1) LRU touch
}

// Manager is the Tenant Store Manager: a bounded LRU cache of open tenant
// stores keyed by tenant id. The cache is the only state; Open and CloseAll
// are the operations callers use, and Len reports occupancy.
type Manager struct {
	dataDir     string
	cacheSize   int
	busyTimeout int // milliseconds

	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently used

	log *logrus.Entry
}

// Config controls the Tenant Store Manager.
type Config struct {
	DataDir     string
	CacheSize   int // max open handles; default 128
	BusyTimeout int // milliseconds; default 5000
}

// New constructs a Manager. It does not open any store until Open is called.
func New(cfg Config, log *logrus.Logger) *Manager {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5000
	}
	return &Manager{
		dataDir:     cfg.DataDir,
		cacheSize:   cfg.CacheSize,
		busyTimeout: cfg.BusyTimeout,
		entries:     make(map[string]*entry),
		lru:         list.New(),
		log:         log.WithField("component", "tenant_store_manager"),
	}
}

// storePath deterministically derives the tenant's database file path from
// its id. filepath.Base strips any path traversal the caller might smuggle
// in through tenant_id.
func (m *Manager) storePath(tenantID string) string {
	return filepath.Join(m.dataDir, filepath.Base(tenantID)+".db")
}

// Open returns the tenant's store handle, opening, migrating, and caching it
// on first access. On cache hit, the entry moves to the most-recently-used
// position. Safe for concurrent calls, including concurrent calls for the
// same tenant: each racing caller may open and migrate the database, but only
// the first handle is cached and returned to all of them; the others are
// closed.
func (m *Manager) Open(ctx context.Context, tenantID string) (*Store, error) {
	m.mu.Lock()
	if e, ok := m.entries[tenantID]; ok {
		m.lru.MoveToFront(e.element)
		store := e.store
		m.mu.Unlock()
		return store, nil
	}
	m.mu.Unlock()

	// Open and migrate outside the lock: disk I/O and migrations must not
	// block unrelated tenants' cache hits.
	store, err := m.openAndMigrate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have raced us to opening the same tenant.
	if e, ok := m.entries[tenantID]; ok {
		m.lru.MoveToFront(e.element)
		_ = store.DB.Close()
		return e.store, nil
	}

	elem := m.lru.PushFront(tenantID)
	m.entries[tenantID] = &entry{store: store, element: elem}

	if m.lru.Len() > m.cacheSize {
		m.evictOldestLocked()
	}

	return store, nil
}

func (m *Manager) openAndMigrate(ctx context.Context, tenantID string) (*Store, error) {
	path := m.storePath(tenantID)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, "open tenant store", err)
	}
	// A multi-connection pool lets reads (journal.ReadSince, the Delta
	// Endpoint) run concurrently with each other and with the single writer
	// WAL allows; Store.BeginWrite, not the pool size, is what serializes
	// writers (§4.A/§5).
	db.SetMaxOpenConns(maxStoreConns)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, apperror.Wrap(apperror.StoreUnavailable, "enable WAL", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", m.busyTimeout)); err != nil {
		_ = db.Close()
		return nil, apperror.Wrap(apperror.StoreUnavailable, "set busy_timeout", err)
	}

	if err := Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, apperror.Wrap(apperror.StoreUnavailable, "migrate tenant store", err)
	}

	return &Store{TenantID: tenantID, DB: db}, nil
}

// evictOldestLocked closes and removes the least-recently-used entry. Must
// be called with mu held. Close errors are logged, never surfaced — an
// eviction must never block or fail the caller that triggered it (§4.A).
func (m *Manager) evictOldestLocked() {
	back := m.lru.Back()
	if back == nil {
		return
	}
	tenantID := back.Value.(string)
	e := m.entries[tenantID]
	m.lru.Remove(back)
	delete(m.entries, tenantID)

	if err := e.store.DB.Close(); err != nil {
		m.log.WithField("tenant_id", tenantID).WithError(err).Warn("error closing evicted tenant store")
	}
}

// CloseAll releases every cached handle. Idempotent.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for tenantID, e := range m.entries {
		if err := e.store.DB.Close(); err != nil {
			m.log.WithField("tenant_id", tenantID).WithError(err).Warn("error closing tenant store")
		}
	}
	m.entries = make(map[string]*entry)
	m.lru = list.New()
}

// Len reports how many tenant stores are currently cached, for health checks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
