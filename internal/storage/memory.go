package storage

import (
	"bytes"
	"sort"
	"sync"
)

// Memory is an in-process store with the same batch semantics as Storage.
// It backs tests and ephemeral ledgers.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the value for key, or nil if absent.
func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}

	return bytes.Clone(v), nil
}

// Has reports whether the key exists.
func (m *Memory) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.data[string(key)]
	return ok, nil
}

// Apply writes all mutations under one lock.
func (m *Memory) Apply(muts []Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mut := range muts {
		if mut.Delete {
			delete(m.data, string(mut.Key))
			continue
		}
		m.data[string(mut.Key)] = bytes.Clone(mut.Value)
	}

	return nil
}

// IteratePrefix visits keys with the given prefix in lexicographic order.
func (m *Memory) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(m.data[k])
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}

	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
