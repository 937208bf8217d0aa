// ABOUTME: In-memory Gateway used by tests and ephemeral commands.
// ABOUTME: Can be told to fail writes to exercise best-effort persistence paths.
package storage

import (
	"errors"
	"sync"
)

// ErrInjected is returned by a Memory gateway whose writes are set to fail.
var ErrInjected = errors.New("injected write failure")

// Memory is a map-backed Gateway.
type Memory struct {
	mu         sync.Mutex
	data       map[string][]byte
	failWrites bool
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// FailWrites makes subsequent Set and Delete calls fail.
func (m *Memory) FailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = fail
}

// Get returns a copy of the value at key or ErrNotFound.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value at key.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return ErrInjected
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return ErrInjected
	}
	delete(m.data, key)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
