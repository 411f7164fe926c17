package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pms/billing/internal/domain/shared"
)

type holder struct {
	token     string
	expiresAt time.Time
}

// InMemoryInFlightGuard implements InFlightGuard with an in-process map.
// It is suitable for single-instance deployments, the CLI and tests.
type InMemoryInFlightGuard struct {
	mu        sync.Mutex
	held      map[string]holder
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryInFlightGuard creates a guard and starts its expiry sweeper
func NewInMemoryInFlightGuard() *InMemoryInFlightGuard {
	g := &InMemoryInFlightGuard{
		held:     make(map[string]holder),
		stopChan: make(chan struct{}),
	}

	g.wg.Add(1)
	go g.cleanupLoop()

	return g
}

// Acquire marks key as in flight. An expired holder is replaced.
func (g *InMemoryInFlightGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if h, ok := g.held[key]; ok && now.Before(h.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[key] = holder{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release frees key if it is still held under token
func (g *InMemoryInFlightGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.held[key]; ok && h.token == token {
		delete(g.held, key)
	}
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (g *InMemoryInFlightGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

func (g *InMemoryInFlightGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

func (g *InMemoryInFlightGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, h := range g.held {
		if now.After(h.expiresAt) {
			delete(g.held, key)
		}
	}
}

// Size returns the number of held keys, expired ones included until swept
func (g *InMemoryInFlightGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}

var _ shared.InFlightGuard = (*InMemoryInFlightGuard)(nil)
