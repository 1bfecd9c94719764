package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"

	"ghp-go/internal/ghp"
)

// DirWriter implements ghp.RepoWriter on a plain directory, for
// export-only mode. There is no commit and no history: Commit is a no-op
// that reports success with an empty commit ID, and files written in
// earlier exports are simply overwritten.
type DirWriter struct {
	path   string
	staged map[string]bool
}

var _ ghp.RepoWriter = (*DirWriter)(nil)

// NewDirWriter creates a writer exporting into path.
func NewDirWriter(path string) *DirWriter {
	return &DirWriter{path: path}
}

func (d *DirWriter) Begin() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return &ghp.StorageError{Err: fmt.Errorf("creating export directory: %w", err)}
	}
	d.staged = make(map[string]bool)
	return nil
}

func (d *DirWriter) Stage(files []ghp.StagedFile) error {
	for _, file := range files {
		target := filepath.Join(d.path, filepath.FromSlash(file.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &ghp.StorageError{Err: fmt.Errorf("creating directory for %s: %w", file.Path, err)}
		}
		if err := os.WriteFile(target, file.Data, 0o644); err != nil {
			return &ghp.StorageError{Err: fmt.Errorf("writing %s: %w", file.Path, err)}
		}
		d.staged[file.Path] = true
	}
	return nil
}

func (d *DirWriter) Remove(paths []string) error {
	for _, p := range paths {
		target := filepath.Join(d.path, filepath.FromSlash(p))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return &ghp.StorageError{Err: fmt.Errorf("removing %s: %w", p, err)}
		}
	}
	return nil
}

func (d *DirWriter) Commit(message string) (string, error) {
	d.staged = nil
	return "", nil
}

func (d *DirWriter) Discard() error {
	var firstErr error
	for p := range d.staged {
		target := filepath.Join(d.path, filepath.FromSlash(p))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	d.staged = nil
	if firstErr != nil {
		return &ghp.StorageError{Err: firstErr}
	}
	return nil
}
