package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCache_MarkSeenAndSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventCache(client)
	ctx := context.Background()

	ref := "provider-tx-12345"

	// Unseen before marking
	seen, err := cache.Seen(ctx, ref)
	assert.NoError(t, err)
	assert.False(t, seen)

	err = cache.MarkSeen(ctx, ref, 24*time.Hour)
	require.NoError(t, err)

	seen, err = cache.Seen(ctx, ref)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestEventCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventCache(client)
	ctx := context.Background()

	ref := "provider-tx-67890"

	err := cache.MarkSeen(ctx, ref, 1*time.Second)
	require.NoError(t, err)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	seen, err := cache.Seen(ctx, ref)
	assert.NoError(t, err)
	assert.False(t, seen, "expired entry should read as unseen")
}

func TestEventCache_DistinctRefs(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventCache(client)
	ctx := context.Background()

	err := cache.MarkSeen(ctx, "tx-a", 1*time.Hour)
	require.NoError(t, err)

	seen, err := cache.Seen(ctx, "tx-b")
	require.NoError(t, err)
	assert.False(t, seen)
}
