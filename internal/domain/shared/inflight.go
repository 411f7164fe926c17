package shared

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InFlightGuard holds a short-lived lock per mutating operation so that a second
// submission for the same resource is refused while the first is still awaiting
// the backend. It is the server-side equivalent of disabling the submit control.
type InFlightGuard interface {
	// Acquire marks key as in flight for at most ttl.
	// ok is false if another call holds it. token identifies this acquisition.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release frees key once the guarded call resolved. It is a no-op when key
	// is now held under another token, i.e. our TTL lapsed and someone else took it.
	Release(ctx context.Context, key, token string) error

	// Close releases resources held by the guard
	Close() error
}

// InFlightConfig holds configuration for in-flight guarding
type InFlightConfig struct {
	// TTL bounds how long a crashed holder can keep a key. It must outlast every
	// backend call a guarded operation makes.
	// Default: 90 seconds
	TTL time.Duration

	// Enabled determines whether guarding is enabled
	// Default: true
	Enabled bool
}

// DefaultInFlightConfig returns the default in-flight configuration
func DefaultInFlightConfig() InFlightConfig {
	return InFlightConfig{
		TTL:     90 * time.Second,
		Enabled: true,
	}
}

// InFlightKey builds a guard key from an operation name and its resource parts
func InFlightKey(operation string, parts ...string) string {
	return operation + ":" + strings.Join(parts, ":")
}

// Guarded runs fn while holding key. A held key yields ErrConflict without calling fn.
// A nil guard runs fn unguarded.
func Guarded(ctx context.Context, guard InFlightGuard, key string, ttl time.Duration, fn func(context.Context) error) error {
	if guard == nil {
		return fn(ctx)
	}
	token, ok, err := guard.Acquire(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire in-flight guard: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	defer func() {
		// Release on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = guard.Release(releaseCtx, key, token)
	}()
	return fn(ctx)
}
