package cas

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/provgraph/engine/internal/canon"
)

// MemoryStore is an in-process CAS backend: a mapping from hash to owned
// byte buffer, guarded by a single mutex.
type MemoryStore struct {
	mu   sync.RWMutex
	blob map[string][]byte

	stores, retrievals, hits, misses, bytesStored atomic.Uint64
}

// NewMemoryStore returns an empty in-memory CAS.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blob: make(map[string][]byte)}
}

func (m *MemoryStore) Store(_ context.Context, b []byte) (string, error) {
	hash := canon.HashBytes(b)

	m.mu.Lock()
	if _, exists := m.blob[hash]; !exists {
		owned := make([]byte, len(b))
		copy(owned, b)
		m.blob[hash] = owned
		m.bytesStored.Add(uint64(len(owned)))
	}
	m.mu.Unlock()

	m.stores.Add(1)
	return hash, nil
}

func (m *MemoryStore) Retrieve(_ context.Context, hash string) ([]byte, error) {
	m.retrievals.Add(1)

	m.mu.RLock()
	b, ok := m.blob[hash]
	m.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return nil, errNotFound(hash)
	}
	m.hits.Add(1)
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryStore) Verify(_ context.Context, hash string, b []byte) (bool, error) {
	m.mu.RLock()
	existing, ok := m.blob[hash]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return bytes.Equal(existing, b), nil
}

func (m *MemoryStore) Clear(_ context.Context, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !force && len(m.blob) > 0 {
		return errNotEmpty()
	}
	m.blob = make(map[string][]byte)
	m.bytesStored.Store(0)
	return nil
}

func (m *MemoryStore) Stats() Stats {
	return Stats{
		Stores:      m.stores.Load(),
		Retrievals:  m.retrievals.Load(),
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		BytesStored: m.bytesStored.Load(),
	}
}
