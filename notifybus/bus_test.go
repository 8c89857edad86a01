package notifybus

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*Bus, context.Context) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logrus.New()
	log.SetOutput(io.Discard)

	bus := New(client, 2, log)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	t.Cleanup(func() {
		cancel()
		bus.Stop()
	})

	// Give the background listener a moment to establish its subscription
	// before the test publishes anything.
	time.Sleep(50 * time.Millisecond)
	return bus, ctx
}

func TestNotifyDeliversToSubscriber(t *testing.T) {
	bus, _ := newTestBus(t)

	sub := bus.Subscribe("tenant-a")
	defer sub.Cancel()

	bus.Notify(context.Background(), "tenant-a", 7)

	select {
	case v := <-sub.Versions:
		require.Equal(t, uint64(7), v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestNotifyIsolatesTenants(t *testing.T) {
	bus, _ := newTestBus(t)

	subA := bus.Subscribe("tenant-a")
	defer subA.Cancel()
	subB := bus.Subscribe("tenant-b")
	defer subB.Cancel()

	bus.Notify(context.Background(), "tenant-a", 1)

	select {
	case v := <-subA.Versions:
		require.Equal(t, uint64(1), v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tenant-a notification")
	}

	select {
	case v := <-subB.Versions:
		t.Fatalf("tenant-b should not have received a notification, got %d", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	bus, _ := newTestBus(t)

	sub := bus.Subscribe("tenant-a")
	sub.Cancel()
	require.NotPanics(t, func() { sub.Cancel() })
}

func TestDispatchDropsOnFullQueue(t *testing.T) {
	bus, _ := newTestBus(t)

	sub := bus.Subscribe("tenant-a")
	defer sub.Cancel()

	// queueDepth is 2; publish more than that in quick succession without
	// draining, then confirm no goroutine blocks forever.
	for i := 0; i < 10; i++ {
		bus.Notify(context.Background(), "tenant-a", uint64(i))
	}

	time.Sleep(100 * time.Millisecond)
	drained := 0
	for {
		select {
		case <-sub.Versions:
			drained++
		default:
			require.LessOrEqual(t, drained, 2)
			return
		}
	}
}
