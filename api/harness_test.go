package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"deltasync/identity"
	"deltasync/notifybus"
	"deltasync/oracle"
	"deltasync/pipeline"
	"deltasync/tenant"
)

// testRig wires a tenant store, oracle, and notification bus against an
// in-process miniredis instance, mirroring how cmd/server/main.go assembles
// the same collaborators against a real coordination service.
type testRig struct {
	stores *tenant.Manager
	bus    *notifybus.Bus
	pipe   *pipeline.Pipeline
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logrus.New()

	stores := tenant.New(tenant.Config{DataDir: t.TempDir(), CacheSize: 10, BusyTimeout: 1000}, log)
	t.Cleanup(stores.CloseAll)

	vo := oracle.NewWithClient(client)
	bus := notifybus.New(client, 8, log)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	t.Cleanup(func() {
		cancel()
		bus.Stop()
	})

	return &testRig{stores: stores, bus: bus, pipe: pipeline.New(stores, vo, bus, log)}
}

// withIdentity attaches an Identity to req's context, the way identity.Middleware
// would after verifying a bearer token.
func withIdentity(req *http.Request, tenantID, userID string) *http.Request {
	ctx := identity.WithIdentity(req.Context(), identity.Identity{TenantID: tenantID, UserID: userID})
	return req.WithContext(ctx)
}
