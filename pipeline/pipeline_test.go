package pipeline

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"deltasync/journal"
	"deltasync/notifybus"
	"deltasync/oracle"
	"deltasync/tenant"
)

func newTestPipeline(t *testing.T) (*Pipeline, *tenant.Manager, *notifybus.Bus) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logrus.New()

	stores := tenant.New(tenant.Config{DataDir: t.TempDir(), CacheSize: 10, BusyTimeout: 1000}, log)
	t.Cleanup(stores.CloseAll)

	vo := oracle.NewWithClient(client)

	bus := notifybus.New(client, 4, log)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	t.Cleanup(func() {
		cancel()
		bus.Stop()
	})

	return New(stores, vo, bus, log), stores, bus
}

func TestExecuteCommitsJournalsAndNotifies(t *testing.T) {
	p, _, bus := newTestPipeline(t)
	ctx := context.Background()

	sub := bus.Subscribe("tenant-a")
	defer sub.Cancel()

	result, err := p.Execute(ctx, "tenant-a", func(ctx context.Context, tx *sql.Tx) ([]Mutation, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO projects (id, name) VALUES (?, ?)`, "p1", "widget")
		if err != nil {
			return nil, err
		}
		return []Mutation{{TableName: "projects", EntityID: "p1", Operation: journal.OpInsert, Payload: `{"id":"p1"}`}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.Version)
	require.Len(t, result.Rows, 1)

	select {
	case v := <-sub.Versions:
		require.Equal(t, uint64(1), v)
	case <-ctx.Done():
		t.Fatal("did not receive notification")
	}
}

func TestExecuteRejectsEmptyMutationSet(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	_, err := p.Execute(context.Background(), "tenant-a", func(ctx context.Context, tx *sql.Tx) ([]Mutation, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestExecuteRollsBackOnMutateFuncError(t *testing.T) {
	p, stores, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Execute(ctx, "tenant-a", func(ctx context.Context, tx *sql.Tx) ([]Mutation, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO projects (id, name) VALUES (?, ?)`, "p1", "widget")
		require.NoError(t, err)
		return nil, sql.ErrNoRows
	})
	require.Error(t, err)

	store, err := stores.Open(ctx, "tenant-a")
	require.NoError(t, err)
	var count int
	require.NoError(t, store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestExecuteRollsBackWhenOracleUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logrus.New()
	stores := tenant.New(tenant.Config{DataDir: t.TempDir(), CacheSize: 10, BusyTimeout: 1000}, log)
	t.Cleanup(stores.CloseAll)

	vo := oracle.NewWithClient(client)
	bus := notifybus.New(client, 4, log)
	p := New(stores, vo, bus, log)

	ctx := context.Background()
	_, err = stores.Open(ctx, "tenant-a")
	require.NoError(t, err)

	mr.Close() // coordination service now unreachable

	_, err = p.Execute(ctx, "tenant-a", func(ctx context.Context, tx *sql.Tx) ([]Mutation, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO projects (id, name) VALUES (?, ?)`, "p1", "widget")
		require.NoError(t, err)
		return []Mutation{{TableName: "projects", EntityID: "p1", Operation: journal.OpInsert, Payload: "{}"}}, nil
	})
	require.Error(t, err)

	store, err := stores.Open(ctx, "tenant-a")
	require.NoError(t, err)
	var count int
	require.NoError(t, store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count))
	require.Equal(t, 0, count)
}
