package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Used for tests and for running the daemon
// without persistence; all state is lost on restart.
type Memory struct {
	mu     sync.Mutex
	kv     map[string]memEntry
	hashes map[string]map[string]string

	// Now is the clock used for TTL checks; tests may replace it.
	Now func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

func NewMemory() *Memory {
	return &Memory{
		kv:     map[string]memEntry{},
		hashes: map[string]map[string]string{},
		Now:    time.Now,
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.kv[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(m.Now()) {
		delete(m.kv, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.kv[key] = e
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *Memory) HGet(ctx context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	return v, ok, nil
}

func (m *Memory) HSet(ctx context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = map[string]string{}
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) HDel(ctx context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes[key], field)
	return nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}
