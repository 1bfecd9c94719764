package testutil

import (
	"fmt"
	"sync"

	"ghp-go/internal/ghp"
)

// MemoryRepoWriter implements ghp.RepoWriter against an in-memory file
// map, recording one entry in Commits per successful commit.
type MemoryRepoWriter struct {
	mu sync.Mutex

	// BeginErr, StageErr and CommitErr, when set, are returned by the
	// corresponding method to exercise failure paths.
	BeginErr  error
	StageErr  error
	CommitErr error

	files      map[string][]byte
	staged     map[string][]byte
	removed    []string
	allRemoved []string
	began      bool
	Commits    []string
	Discarded  int
}

var _ ghp.RepoWriter = (*MemoryRepoWriter)(nil)

func NewMemoryRepoWriter() *MemoryRepoWriter {
	return &MemoryRepoWriter{files: make(map[string][]byte)}
}

func (w *MemoryRepoWriter) Begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.BeginErr != nil {
		return w.BeginErr
	}
	if w.began {
		return fmt.Errorf("Begin called twice without Commit or Discard")
	}
	w.began = true
	w.staged = make(map[string][]byte)
	w.removed = nil
	return nil
}

func (w *MemoryRepoWriter) Stage(files []ghp.StagedFile) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.began {
		return fmt.Errorf("Stage called before Begin")
	}
	if w.StageErr != nil {
		return w.StageErr
	}
	for _, f := range files {
		data := make([]byte, len(f.Data))
		copy(data, f.Data)
		w.staged[f.Path] = data
	}
	return nil
}

func (w *MemoryRepoWriter) Remove(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.began {
		return fmt.Errorf("Remove called before Begin")
	}
	w.removed = append(w.removed, paths...)
	w.allRemoved = append(w.allRemoved, paths...)
	return nil
}

func (w *MemoryRepoWriter) Commit(message string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.began {
		return "", fmt.Errorf("Commit called before Begin")
	}
	if w.CommitErr != nil {
		w.began = false
		return "", w.CommitErr
	}

	for _, p := range w.removed {
		delete(w.files, p)
	}
	for p, data := range w.staged {
		w.files[p] = data
	}
	w.staged = nil
	w.removed = nil
	w.began = false

	w.Commits = append(w.Commits, message)
	return fmt.Sprintf("commit-%d", len(w.Commits)), nil
}

func (w *MemoryRepoWriter) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.staged = nil
	w.removed = nil
	w.began = false
	w.Discarded++
	return nil
}

// File returns the committed bytes at path, or nil if absent.
func (w *MemoryRepoWriter) File(path string) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, ok := w.files[path]
	if !ok {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// Files returns the committed paths.
func (w *MemoryRepoWriter) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	return out
}

// RemovedPaths returns every path ever passed to Remove.
func (w *MemoryRepoWriter) RemovedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.allRemoved))
	copy(out, w.allRemoved)
	return out
}
