// Package cache holds the shared read cache and keeps it coherent with
// ledger state after mutations settle.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached value. Stale entries are kept so observers can render
// them while a refetch is in flight.
type Entry struct {
	Value     []byte    `json:"value"`
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a key-value read cache keyed by resource family + identity. Each
// operation is atomic per key; cross-key ordering is the coherence adapter's
// concern.
type Store interface {
	// Get returns the entry for a key, or nil when absent or expired.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set stores a fresh value. Zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate marks the entry stale so the next read triggers a refetch.
	// Invalidating an absent key is a no-op.
	Invalidate(ctx context.Context, key string) error
	// Delete removes the entry.
	Delete(ctx context.Context, key string) error
}

// memEntry is a MemoryStore record.
type memEntry struct {
	value     []byte
	stale     bool
	updatedAt time.Time
	expiresAt time.Time
}

// MemoryStore is the in-process Store backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

// Get returns the entry for a key.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return &Entry{Value: value, Stale: e.stale, UpdatedAt: e.updatedAt}, nil
}

// Set stores a fresh value.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	e := &memEntry{value: stored, updatedAt: time.Now()}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Invalidate marks the entry stale.
func (s *MemoryStore) Invalidate(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.stale = true
		e.updatedAt = time.Now()
	}
	return nil
}

// Delete removes the entry.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
