package cache

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryInFlightGuard_AcquireRelease(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	defer g.Close()

	ctx := context.Background()

	token, ok, err := g.Acquire(ctx, "payment:12:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = g.Acquire(ctx, "payment:12:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held key is refused")

	_, ok, err = g.Acquire(ctx, "payment:13:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, g.Release(ctx, "payment:12:7", token))
	_, ok, err = g.Acquire(ctx, "payment:12:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be acquired again")
}

func TestInMemoryInFlightGuard_Expiry(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	defer g.Close()

	ctx := context.Background()
	_, ok, err := g.Acquire(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok, err = g.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired holder is replaced")

	g.held["stale"] = holder{token: "t", expiresAt: time.Now().Add(-time.Second)}
	g.cleanup()
	assert.Equal(t, 1, g.Size())
}

func TestInMemoryInFlightGuard_LateReleaseKeepsNewHolder(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	defer g.Close()

	ctx := context.Background()
	first, ok, err := g.Acquire(ctx, "payment:12:7", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	second, ok, err := g.Acquire(ctx, "payment:12:7", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired holder is replaced")

	require.NoError(t, g.Release(ctx, "payment:12:7", first))

	_, ok, err = g.Acquire(ctx, "payment:12:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a lapsed holder cannot free the key of the current one")

	require.NoError(t, g.Release(ctx, "payment:12:7", second))
	assert.Zero(t, g.Size())
}

func TestInMemoryInFlightGuard_CancelledContext(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := g.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryInFlightGuard_ConcurrentAcquire(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	defer g.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := g.Acquire(context.Background(), "same", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestInMemoryInFlightGuard_CloseTwice(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	assert.NoError(t, g.Close())
	assert.NoError(t, g.Close())
}

func TestGuardedWithInMemoryGuard(t *testing.T) {
	g := NewInMemoryInFlightGuard()
	defer g.Close()

	ctx := context.Background()
	key := shared.InFlightKey("payment", "12", "7")

	err := shared.Guarded(ctx, g, key, time.Minute, func(ctx context.Context) error {
		inner := shared.Guarded(ctx, g, key, time.Minute, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, shared.ErrConflict)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, g.Size(), "key released after the call")
}

func TestGuardFactory_RedisDisabled(t *testing.T) {
	f := NewGuardFactory(config.RedisConfig{Enabled: false})
	guard, err := f.CreateGuard()
	require.NoError(t, err)
	defer guard.Close()

	_, ok := guard.(*InMemoryInFlightGuard)
	assert.True(t, ok)
}

func TestGuardFactory_Fallback(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	guard, err := NewGuardFactory(cfg).CreateGuard()
	require.NoError(t, err)
	defer guard.Close()
	_, ok := guard.(*InMemoryInFlightGuard)
	assert.True(t, ok)

	_, err = NewGuardFactory(cfg, WithInMemoryFallback(false)).CreateGuard()
	assert.Error(t, err)
}

// TestRedisInFlightGuard runs against a real Redis when PMS_TEST_REDIS_HOST is set.
func TestRedisInFlightGuard(t *testing.T) {
	host := os.Getenv("PMS_TEST_REDIS_HOST")
	if host == "" {
		t.Skip("PMS_TEST_REDIS_HOST not set")
	}
	port := 6379
	if p := os.Getenv("PMS_TEST_REDIS_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}

	g, err := NewRedisInFlightGuard(RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer g.Close()

	ctx := context.Background()
	key := "test:" + strconv.FormatInt(time.Now().UnixNano(), 10)

	token, ok, err := g.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	other := NewRedisInFlightGuardWithClient(g.Client(), "")
	_, ok, err = other.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a second instance sees the held key")

	require.NoError(t, other.Release(ctx, key, "not-the-holder"), "a foreign token is a no-op")
	_, ok, err = other.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Release(ctx, key, token))
	otherToken, ok, err := other.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, key, token), "a late release by the previous holder is a no-op")
	_, ok, err = g.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, other.Release(ctx, key, otherToken))
}
