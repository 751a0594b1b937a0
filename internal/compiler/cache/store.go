package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store defines the interface for bundle artifact backends
type Store interface {
	// Get retrieves an artifact; a missing key returns ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores an artifact with a TTL; zero uses the default TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes an artifact
	Delete(ctx context.Context, key string) error
}

// StoreConfig holds common configuration for stores
type StoreConfig struct {
	// DefaultTTL is the default time-to-live for artifacts; negative keeps
	// them forever
	DefaultTTL time.Duration
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultStoreConfig returns a default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DefaultTTL: 24 * time.Hour,
		Prefix:     "neuron:bundle:",
	}
}

// ErrCacheMiss is returned when a key is not found in the store
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// entry is one stored artifact
type entry struct {
	value      []byte
	storedAt   time.Time
	expiration time.Time
}

// MemoryStore keeps artifacts in process memory for watch mode
type MemoryStore struct {
	entries map[string]*entry
	config  StoreConfig
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryStore creates a memory store with the default configuration
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(DefaultStoreConfig())
}

// NewMemoryStoreWithConfig creates a memory store
func NewMemoryStoreWithConfig(config StoreConfig) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		config:  config,
		now:     time.Now,
	}
}

// Get retrieves an artifact
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	e, ok := m.entries[m.config.Prefix+key]
	m.mu.RUnlock()

	if !ok || m.expired(e) {
		return nil, ErrCacheMiss{Key: key}
	}
	return e.value, nil
}

// Set stores an artifact
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	now := m.now()
	e := &entry{value: value, storedAt: now}
	if ttl > 0 {
		e.expiration = now.Add(ttl)
	}

	m.mu.Lock()
	m.entries[m.config.Prefix+key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes an artifact
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, m.config.Prefix+key)
	return nil
}

// Size returns the number of stored artifacts, expired ones included
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Prune removes expired artifacts and returns how many were removed
func (m *MemoryStore) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for key, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, key)
			pruned++
		}
	}
	return pruned
}

func (m *MemoryStore) expired(e *entry) bool {
	return !e.expiration.IsZero() && m.now().After(e.expiration)
}

// NoopStore never stores anything
type NoopStore struct{}

// Get always misses
func (NoopStore) Get(_ context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss{Key: key}
}

// Set discards the artifact
func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing
func (NoopStore) Delete(context.Context, string) error { return nil }
