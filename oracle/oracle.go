// Package oracle implements the Version Oracle (spec.md §4.C): the single
// atomic next(tenant_id) -> v operation every write pipeline depends on.
// It is deliberately thin — the coordination service (Redis) provides the
// only atomicity the core needs, grounded on the teacher's
// RedisRepository.Increment in db/repository/redis.go.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deltasync/apperror"
)

// Oracle allocates strictly monotonic per-tenant version numbers.
type Oracle struct {
	client *redis.Client
}

// New dials the coordination service at addr ("host:port" or a redis:// URL).
func New(addr string) (*Oracle, error) {
	var opts *redis.Options
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("oracle: connect to coordination service: %w", err)
	}

	return &Oracle{client: client}, nil
}

// NewWithClient wraps an already-constructed redis client, for tests that
// point at a miniredis instance.
func NewWithClient(client *redis.Client) *Oracle {
	return &Oracle{client: client}
}

// counterKey is a plain string counter rather than a hash with a single "v"
// field: INCR on a string key is the same atomic primitive, and nothing else
// ever reads or writes a sibling field on this key.
func counterKey(tenantID string) string {
	return "tenant:" + tenantID + ":version"
}

// Next atomically returns counter[tenant_id] += 1. Any failure here is
// fatal-to-the-request: the write pipeline must roll back its transaction.
func (o *Oracle) Next(ctx context.Context, tenantID string) (uint64, error) {
	v, err := o.client.Incr(ctx, counterKey(tenantID)).Result()
	if err != nil {
		return 0, apperror.Wrap(apperror.OracleUnavailable, "allocate version", err)
	}
	return uint64(v), nil
}

// Close releases the underlying connection.
func (o *Oracle) Close() error {
	return o.client.Close()
}
