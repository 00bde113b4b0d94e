package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemStore keeps checkpoints in a map. Thread-safe via sync.RWMutex. Values
// are stored as JSON so callers never share memory with the store.
type MemStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemStore returns an initialized MemStore.
func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string][]byte)}
}

// Save stores cp under its session ID.
func (m *MemStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	stamp(&cp, time.Now().UTC())
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cp.SessionID] = data
	return nil
}

// Load returns the checkpoint for sessionID.
func (m *MemStore) Load(_ context.Context, sessionID string) (*Checkpoint, error) {
	m.mu.RLock()
	data, ok := m.items[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", sessionID, err)
	}
	return &cp, nil
}

// List returns every checkpoint, most recently updated first.
func (m *MemStore) List(_ context.Context) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Checkpoint, 0, len(m.items))
	for id, data := range m.items {
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("checkpoint: decode %s: %w", id, err)
		}
		out = append(out, cp)
	}
	sortByUpdated(out)
	return out, nil
}

// Delete removes the checkpoint for sessionID.
func (m *MemStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	delete(m.items, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }
