package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventCache implements ports.EventCache using Redis. It only caches
// provider transaction references that reached a terminal outcome; the
// payment status check under the row lock stays authoritative, so a cache
// miss or a flushed Redis never corrupts state.
type EventCache struct {
	client *goredis.Client
	prefix string
}

// NewEventCache creates a new Redis-backed webhook event cache.
func NewEventCache(client *goredis.Client) *EventCache {
	return &EventCache{
		client: client,
		prefix: "webhook:seen:",
	}
}

// Seen reports whether the provider transaction reference was already
// processed to a terminal outcome.
func (c *EventCache) Seen(ctx context.Context, providerTxRef string) (bool, error) {
	err := c.client.Get(ctx, c.prefix+providerTxRef).Err()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis event cache get: %w", err)
	}
	return true, nil
}

// MarkSeen records a terminal delivery with TTL.
func (c *EventCache) MarkSeen(ctx context.Context, providerTxRef string, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+providerTxRef, "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("redis event cache set: %w", err)
	}
	return nil
}
