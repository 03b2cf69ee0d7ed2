package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard keeps claims in process memory. Suitable for single-node
// deployments and tests; multi-node workers must share the redis guard.
type MemoryGuard struct {
	mu      sync.Mutex
	claims  map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &MemoryGuard{
		claims: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go g.sweep()
	return g
}

func (g *MemoryGuard) TryClaim(_ context.Context, messageID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if claimedAt, ok := g.claims[messageID]; ok && g.now().Sub(claimedAt) < g.ttl {
		return false, nil
	}
	g.claims[messageID] = g.now()
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, messageID)
	return nil
}

// Close stops the background sweep.
func (g *MemoryGuard) Close() {
	g.stopped.Do(func() { close(g.stop) })
}

// sweep drops expired claims to bound memory. Expiry itself is enforced at
// claim time, so the interval only affects memory, not correctness.
func (g *MemoryGuard) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.mu.Lock()
			for id, claimedAt := range g.claims {
				if g.now().Sub(claimedAt) >= g.ttl {
					delete(g.claims, id)
				}
			}
			g.mu.Unlock()
		}
	}
}
