package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"episodic-memory/internal/types"
)

// MemoryBackend is an in-memory Backend, thread-safe via RWMutex. Values are
// copied on Get/Scan so callers can never mutate internal state, matching
// the deep-copy-on-read discipline the teacher's MemoryStorage used for its
// Thought/Branch maps.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, types.NewNotFound("key not found")
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryBackend) Scan(_ context.Context, prefix []byte) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []KV
	for k, v := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			val := make([]byte, len(v))
			copy(val, v)
			out = append(out, KV{Key: []byte(k), Value: val})
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

func (m *MemoryBackend) BatchCommit(_ context.Context, ops []BatchOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			v := make([]byte, len(op.Value))
			copy(v, op.Value)
			m.data[string(op.Key)] = v
		case OpDelete:
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
