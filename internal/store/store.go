package store

import (
	"context"
	"errors"
	"sync"
)

// Keys under which application state is persisted.
const (
	KeyProviders = "aiProviders"
	KeyDrafts    = "lyricDrafts"
	KeyLastUsed  = "lastUsedAIConfig"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// UpdateFunc computes the next value of a key from its current value. ok is
// false when the key is absent. Returning an error aborts the update.
type UpdateFunc func(current string, ok bool) (string, error)

// KV is a string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Update runs a read-modify-write of key atomically with respect to
	// every other writer of the same store, including other processes.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Memory is an in-process KV used for tests and ephemeral runs.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ KV = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}
