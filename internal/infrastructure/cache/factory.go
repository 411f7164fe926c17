package cache

import (
	"fmt"

	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// GuardFactory creates in-flight guards based on configuration
type GuardFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// GuardFactoryOption is a functional option for configuring the factory
type GuardFactoryOption func(*GuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) GuardFactoryOption {
	return func(f *GuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to the in-memory guard.
// Default is true.
func WithInMemoryFallback(allow bool) GuardFactoryOption {
	return func(f *GuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewGuardFactory creates a new factory
func NewGuardFactory(cfg config.RedisConfig, opts ...GuardFactoryOption) *GuardFactory {
	f := &GuardFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateGuard returns a Redis guard when Redis is enabled and reachable, and the
// in-memory guard otherwise (if fallback is allowed)
func (f *GuardFactory) CreateGuard() (shared.InFlightGuard, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory in-flight guard")
		return NewInMemoryInFlightGuard(), nil
	}

	guard, err := NewRedisInFlightGuard(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis in-flight guard")
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for in-flight guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory in-flight guard. "+
		"Concurrent submissions through different instances will not be refused.",
		zap.Error(err),
	)
	return NewInMemoryInFlightGuard(), nil
}
