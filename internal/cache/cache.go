package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is the outbound fast-lookup cache: keyed values with a TTL and tag
// labels for grouped retrieval (high-risk scan results, critical audit
// entries). Callers must treat every operation as best-effort; the
// authoritative data lives in the owning service's store.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Get(ctx context.Context, key string) ([]byte, error)
	KeysByTag(ctx context.Context, tag string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-process fallback used when no redis endpoint is
// configured or the endpoint is unreachable.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		entries: map[string]memoryEntry{},
		tags:    map[string]map[string]struct{}{},
	}
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: exp}
	for _, t := range tags {
		set, ok := m.tags[t]
		if !ok {
			set = map[string]struct{}{}
			m.tags[t] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrMiss
	}
	return e.value, nil
}

func (m *Memory) KeysByTag(_ context.Context, tag string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.tags[tag]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	keys := make([]string, 0, len(set))
	for k := range set {
		e, ok := m.entries[k]
		if !ok {
			continue
		}
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	for _, set := range m.tags {
		delete(set, key)
	}
	return nil
}
