// Package store provides the integrity-checked persistence layer. Every
// value is wrapped with a checksum and a storage timestamp, obfuscated, and
// verified again on read; entries that fail verification or outlive the
// expiry window are deleted rather than returned.
package store

import (
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned by a Backend when a key has no value.
var ErrNotFound = errors.New("key not found")

// Backend is a flat key-value layer underneath the Store. Two lifetimes are
// in play: a long-lived backend (SQLite) that survives restarts, and a
// short-lived in-memory backend scoped to the process, holding the
// credential, session record, and attempt window.
type Backend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// Keys returns all keys with the given prefix. An empty prefix returns
	// every key.
	Keys(prefix string) ([]string, error)
}

// MemoryBackend is the short-lived layer. Contents vanish with the process,
// which is exactly the lifetime the credential and attempt state want.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.items[key] = v
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryBackend) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Wipe removes every entry. Used when the environment signals that
// sensitive state must not outlive the current context.
func (m *MemoryBackend) Wipe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.items {
		for i := range v {
			v[i] = 0
		}
		delete(m.items, k)
	}
}
