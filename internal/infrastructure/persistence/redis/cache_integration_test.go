//go:build integration

package redis

import (
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/testinfra"
)

func TestCache_Redis(t *testing.T) {
	svc := testinfra.StartRedis(t)

	cfg := DefaultConfig()
	cfg.Addr = svc.URL
	cache, err := NewCache(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	ctx := t.Context()

	var out []string
	assert.ErrorIs(t, cache.Get(ctx, "missing", &out), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", []string{"a", "b"}, time.Minute))
	require.NoError(t, cache.Get(ctx, "k", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	p := NewProcessedEvents(cache)
	state, err := p.Claim(ctx, "mailer", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, notification.ClaimAcquired, state)
	state, err = p.Claim(ctx, "mailer", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, notification.ClaimInFlight, state)
}

func TestProcessedEvents_RedisLeaseBecomesDoneMark(t *testing.T) {
	svc := testinfra.StartRedis(t)

	client := goredis.NewClient(&goredis.Options{Addr: svc.URL})
	cache := NewCacheWithClient(client)
	t.Cleanup(func() { _ = cache.Close() })
	require.NoError(t, cache.Ping(t.Context()))

	ctx := t.Context()
	key := ProcessedKey("mailer", "evt-1")
	p := NewProcessedEvents(cache)

	state, err := p.Claim(ctx, "mailer", "evt-1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, notification.ClaimAcquired, state)

	leaseTTL, err := cache.Client().TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, leaseTTL, time.Minute)

	require.NoError(t, p.Complete(ctx, "mailer", "evt-1", 24*time.Hour))
	doneTTL, err := cache.Client().TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, doneTTL, time.Hour, "done mark outlives the lease")

	state, err = p.Claim(ctx, "mailer", "evt-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, notification.ClaimDone, state)
}
