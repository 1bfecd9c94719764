package mirror

import (
	"context"
	"io"
	"sync"
)

// MemoryMirror stores uploads in memory, for tests.
type MemoryMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ Mirror = (*MemoryMirror)(nil)

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{objects: make(map[string][]byte)}
}

func (m *MemoryMirror) Upload(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return nil
}

func (m *MemoryMirror) Name() string {
	return "memory"
}

// Object returns the stored bytes for name, or nil if never uploaded.
func (m *MemoryMirror) Object(name string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[name]
	if !ok {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
