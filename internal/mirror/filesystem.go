package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemMirror copies bundles into a local directory, typically a
// mounted network share. Writes are atomic: temp file then rename.
type FileSystemMirror struct {
	root string
}

var _ Mirror = (*FileSystemMirror)(nil)

// NewFileSystemMirror creates a mirror rooted at the given path.
func NewFileSystemMirror(root string) (*FileSystemMirror, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}
	return &FileSystemMirror{root: root}, nil
}

func (m *FileSystemMirror) Upload(ctx context.Context, name string, r io.Reader) error {
	destPath := filepath.Join(m.root, name)

	tmpFile, err := os.CreateTemp(m.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (m *FileSystemMirror) Name() string {
	return m.root
}
