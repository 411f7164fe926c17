package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "pms:inflight:"

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot free a key another holder acquired since.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInFlightGuard implements InFlightGuard on Redis so that every API
// instance sees the same in-flight submissions.
type RedisInFlightGuard struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisInFlightGuard connects to Redis and verifies the connection
func NewRedisInFlightGuard(cfg RedisConfig) (*RedisInFlightGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisInFlightGuardWithClient(client, ""), nil
}

// NewRedisInFlightGuardWithClient creates a guard on an existing client
func NewRedisInFlightGuardWithClient(client *redis.Client, keyPrefix string) *RedisInFlightGuard {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisInFlightGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire uses SET NX with a TTL so the check and the claim are one atomic step
func (g *RedisInFlightGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire in-flight key: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees key if it still holds token
func (g *RedisInFlightGuard) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisInFlightGuard) Close() error {
	return g.client.Close()
}

// Client returns the underlying Redis client, used by health checks
func (g *RedisInFlightGuard) Client() *redis.Client {
	return g.client
}

var _ shared.InFlightGuard = (*RedisInFlightGuard)(nil)
