// Package cache holds read-mostly listing projections under per-entity
// namespaces. Writes invalidate only the namespace they touch, never the
// whole cache.
package cache

import (
	"context"
	"sync"
	"time"
)

// Namespaces, one per cached entity type
const (
	NSOrders   = "orders"
	NSPayments = "payments"
	NSProofs   = "proofs"
)

type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool)
	Set(ctx context.Context, namespace, key string, value []byte)
	Invalidate(ctx context.Context, namespace string)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is the in-process fallback used when REDIS_ADDR is unset, and
// by tests.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]memoryEntry
	ttl        time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string]memoryEntry),
		ttl:        ttl,
	}
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.namespaces[namespace][key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]memoryEntry)
		s.namespaces[namespace] = ns
	}
	ns[key] = memoryEntry{value: value, expiresAt: time.Now().Add(s.ttl)}
}

func (s *MemoryStore) Invalidate(_ context.Context, namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
}
