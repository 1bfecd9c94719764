package mirror

import (
	"context"
	"io"
)

// Mirror uploads archive bundles to offsite storage after a successful
// commit. Mirroring is best-effort: a failed upload never rolls back the
// commit, it only surfaces as a warning.
type Mirror interface {
	// Upload stores the contents of r under name, overwriting any
	// previous object of the same name.
	Upload(ctx context.Context, name string, r io.Reader) error

	// Name identifies the mirror target for log messages.
	Name() string
}

// PublishTree bundles the directory tree at root into a tar.gz stream and
// uploads it under name. The bundle is streamed, never materialized on
// disk.
func PublishTree(ctx context.Context, m Mirror, root, name string) error {
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(Bundle(pw, root))
	}()

	err := m.Upload(ctx, name, pr)
	pr.CloseWithError(err)
	return err
}
