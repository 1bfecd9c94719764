package tracker

import (
	"sort"
	"sync"

	"ghp-go/internal/ghp"
)

// MemoryTracker is an in-memory ArchiveTracker for tests and dry runs.
// State is lost on Close.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[string]*ghp.ArchivedEntry
	runs    []*ghp.SyncRun
}

var _ ghp.ArchiveTracker = (*MemoryTracker)(nil)

// NewMemoryTracker creates an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{entries: make(map[string]*ghp.ArchivedEntry)}
}

func (m *MemoryTracker) IsArchived(changeID, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[changeID]
	return ok && entry.Fingerprint == fingerprint, nil
}

func (m *MemoryTracker) Lookup(changeID string) (*ghp.ArchivedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[changeID]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (m *MemoryTracker) Record(entry *ghp.ArchivedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *entry
	m.entries[entry.ChangeID] = &clone
	return nil
}

func (m *MemoryTracker) AllEntries() ([]*ghp.ArchivedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ghp.ArchivedEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		clone := *entry
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryTracker) RecordRun(run *ghp.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *run
	m.runs = append(m.runs, &clone)
	return nil
}

func (m *MemoryTracker) Runs(limit int) ([]*ghp.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ghp.SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		clone := *run
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryTracker) Close() error {
	return nil
}
