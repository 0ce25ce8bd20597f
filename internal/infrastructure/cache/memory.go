package cache

import (
	"context"
	"sync"
	"time"

	"LegislativeClipping/internal/ports"
)

// MemoryCache is the in-process SeenCache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

var _ ports.SeenCache = (*MemoryCache)(nil)

// NewMemoryCache keeps keys for ttl; zero keeps them forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, entries: map[string]time.Time{}}
}

func (m *MemoryCache) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	marked, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if m.ttl > 0 && m.now().Sub(marked) >= m.ttl {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryCache) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	m.entries[key] = m.now()
	m.mu.Unlock()
	return nil
}
