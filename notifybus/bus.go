// Package notifybus implements the Notification Bus (spec.md §4.F): an
// in-process fan-out of (tenant, version) events to subscribers, fed by the
// coordination service's pub/sub so the fan-out is correct across process
// boundaries, including the producer's own process.
//
// The background subscriber loop is structured the way the teacher's
// db/listener.go Listener.listenLoop is: a retry-with-backoff loop around a
// blocking receive, dispatching to local handlers, so a dropped coordination
// connection self-heals instead of killing the process.
package notifybus

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPattern = "sync:*"

func channelFor(tenantID string) string {
	return "sync:" + tenantID
}

// Subscription is a transient in-process handle returned by Subscribe: a
// bounded queue of version numbers and a cancellation function.
type Subscription struct {
	Versions <-chan uint64
	cancel   func()
}

// Cancel removes the subscription from its tenant's subscriber set. Safe to
// call from a request-termination handler, and safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Bus fans out version notifications to local subscribers and publishes
// outgoing ones through the coordination service's pub/sub.
type Bus struct {
	client     *redis.Client
	queueDepth int
	log        *logrus.Entry

	mu          sync.RWMutex
	subscribers map[string]map[chan uint64]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Bus bound to an already-connected redis client. QueueDepth
// is the bounded per-subscriber channel capacity (spec default 16).
func New(client *redis.Client, queueDepth int, log *logrus.Logger) *Bus {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Bus{
		client:      client,
		queueDepth:  queueDepth,
		log:         log.WithField("component", "notifybus"),
		subscribers: make(map[string]map[chan uint64]struct{}),
	}
}

// Start launches the background task that subscribes to the coordination
// service's pub/sub across all tenants and dispatches to local subscribers.
// It must be called exactly once per process.
func (b *Bus) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.listenLoop(ctx)
}

// Stop cancels the background subscriber task and waits for it to exit.
func (b *Bus) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}

// listenLoop maintains the pub/sub subscription with reconnection support,
// the same posture as the teacher's Listener.listenLoop.
func (b *Bus) listenLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := b.listen(ctx); err != nil && ctx.Err() == nil {
				b.log.WithError(err).Warn("pub/sub subscription dropped, reconnecting in 1s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (b *Bus) listen(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channelPattern, err)
	}
	b.log.WithField("pattern", channelPattern).Info("subscribed to coordination service")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("pub/sub channel closed")
			}
			b.handleMessage(msg)
		}
	}
}

func (b *Bus) handleMessage(msg *redis.Message) {
	tenantID, ok := tenantFromChannel(msg.Channel)
	if !ok {
		return
	}
	v, err := strconv.ParseUint(msg.Payload, 10, 64)
	if err != nil {
		b.log.WithField("channel", msg.Channel).WithError(err).Warn("dropping unparseable notification")
		return
	}
	b.dispatch(tenantID, v)
}

func tenantFromChannel(channel string) (string, bool) {
	const prefix = "sync:"
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return "", false
	}
	return channel[len(prefix):], true
}

// dispatch delivers v to every local subscriber of tenantID, dropping on a
// full queue rather than blocking (spec §4.F: newest version drops, never
// blocks the fan-out).
func (b *Bus) dispatch(tenantID string, v uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for q := range b.subscribers[tenantID] {
		select {
		case q <- v:
		default:
			// queue full: subscriber recovers via a later since= pull.
		}
	}
}

// Subscribe registers a new subscriber for tenantID and returns its bounded
// queue plus a cancellation handle.
func (b *Bus) Subscribe(tenantID string) *Subscription {
	q := make(chan uint64, b.queueDepth)

	b.mu.Lock()
	set, ok := b.subscribers[tenantID]
	if !ok {
		set = make(map[chan uint64]struct{})
		b.subscribers[tenantID] = set
	}
	set[q] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subscribers[tenantID]; ok {
				delete(set, q)
				if len(set) == 0 {
					delete(b.subscribers, tenantID)
				}
			}
			b.mu.Unlock()
			close(q)
		})
	}

	return &Subscription{Versions: q, cancel: cancel}
}

// Notify publishes (tenant, v) through the coordination service. Producers
// never write to local queues directly; they go through the same pub/sub
// channel so every process, including their own, receives it uniformly. A
// publish failure is logged and does not fail the request — the client
// recovers because `since` forces a re-pull on its next stream event.
func (b *Bus) Notify(ctx context.Context, tenantID string, v uint64) {
	if err := b.client.Publish(ctx, channelFor(tenantID), strconv.FormatUint(v, 10)).Err(); err != nil {
		b.log.WithField("tenant_id", tenantID).WithField("version", v).WithError(err).
			Warn("failed to publish notification")
	}
}
