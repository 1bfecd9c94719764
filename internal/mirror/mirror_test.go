package mirror

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ghp-go/internal/config"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for path, content := range files {
		target := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("creating %s: %v", path, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	return root
}

func readBundle(t *testing.T, data []byte) map[string]string {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("bundle is not gzip: %v", err)
	}
	tr := tar.NewReader(gz)

	out := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading %s: %v", hdr.Name, err)
		}
		out[hdr.Name] = string(content)
	}
	return out
}

func TestBundle_roundTrip(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":                "# Gerrit History Preservation\n",
		"patches/0001-first.patch": "diff\n",
		"html/index.html":          "<html>\n",
		".git/config":              "[core]\n",
		".git/objects/aa/bb":       "binary",
	})

	var buf bytes.Buffer
	if err := Bundle(&buf, root); err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}

	entries := readBundle(t, buf.Bytes())
	if entries["patches/0001-first.patch"] != "diff\n" {
		t.Errorf("patch content = %q", entries["patches/0001-first.patch"])
	}
	if entries["README.md"] == "" || entries["html/index.html"] == "" {
		t.Errorf("bundle entries = %v", entries)
	}
	for name := range entries {
		if name == ".git/config" || name == ".git/objects/aa/bb" {
			t.Errorf("bundle includes repository internals: %s", name)
		}
	}
}

func TestBundle_isDeterministic(t *testing.T) {
	files := map[string]string{
		"a.txt":     "aaa\n",
		"dir/b.txt": "bbb\n",
	}
	rootA := writeTree(t, files)
	rootB := writeTree(t, files)

	var bufA, bufB bytes.Buffer
	if err := Bundle(&bufA, rootA); err != nil {
		t.Fatalf("Bundle(a) error = %v", err)
	}
	if err := Bundle(&bufB, rootB); err != nil {
		t.Fatalf("Bundle(b) error = %v", err)
	}
	if !bytes.Equal(bufA.Bytes(), bufB.Bytes()) {
		t.Error("identical trees produced different bundles")
	}
}

func TestPublishTree_uploadsBundle(t *testing.T) {
	root := writeTree(t, map[string]string{"patches/0001-x.patch": "diff\n"})
	m := NewMemoryMirror()

	if err := PublishTree(context.Background(), m, root, "gerrit-history-20240115T103000Z.tar.gz"); err != nil {
		t.Fatalf("PublishTree() error = %v", err)
	}

	data := m.Object("gerrit-history-20240115T103000Z.tar.gz")
	if data == nil {
		t.Fatal("nothing uploaded")
	}
	entries := readBundle(t, data)
	if entries["patches/0001-x.patch"] != "diff\n" {
		t.Errorf("bundle entries = %v", entries)
	}
}

func TestPublishTree_missingRootFails(t *testing.T) {
	m := NewMemoryMirror()
	err := PublishTree(context.Background(), m, filepath.Join(t.TempDir(), "absent"), "x.tar.gz")
	if err == nil {
		t.Fatal("PublishTree() accepted missing tree")
	}
}

func TestFileSystemMirror_uploadIsAtomicRename(t *testing.T) {
	root := t.TempDir()
	m, err := NewFileSystemMirror(root)
	if err != nil {
		t.Fatalf("NewFileSystemMirror() error = %v", err)
	}

	if err := m.Upload(context.Background(), "bundle.tar.gz", bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "bundle.tar.gz"))
	if err != nil || string(data) != "payload" {
		t.Errorf("uploaded object = %q, %v", data, err)
	}

	// No temp files linger after a successful upload.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("mirror dir has %d entries, want 1", len(entries))
	}
}

func TestFileSystemMirror_overwritesExistingObject(t *testing.T) {
	root := t.TempDir()
	m, err := NewFileSystemMirror(root)
	if err != nil {
		t.Fatalf("NewFileSystemMirror() error = %v", err)
	}

	for _, payload := range []string{"first", "second"} {
		if err := m.Upload(context.Background(), "bundle.tar.gz", bytes.NewReader([]byte(payload))); err != nil {
			t.Fatalf("Upload(%s) error = %v", payload, err)
		}
	}

	data, _ := os.ReadFile(filepath.Join(root, "bundle.tar.gz"))
	if string(data) != "second" {
		t.Errorf("object = %q, want latest upload", data)
	}
}

func TestNewMirrorFromConfig(t *testing.T) {
	t.Run("none yields nil mirror", func(t *testing.T) {
		m, err := NewMirrorFromConfig(context.Background(), config.MirrorConfig{Type: "none"})
		if err != nil || m != nil {
			t.Errorf("NewMirrorFromConfig(none) = %v, %v; want nil, nil", m, err)
		}
	})
	t.Run("filesystem requires root", func(t *testing.T) {
		if _, err := NewMirrorFromConfig(context.Background(), config.MirrorConfig{Type: "filesystem"}); err == nil {
			t.Error("filesystem mirror accepted empty root")
		}
	})
	t.Run("filesystem", func(t *testing.T) {
		m, err := NewMirrorFromConfig(context.Background(), config.MirrorConfig{Type: "filesystem", FSRoot: t.TempDir()})
		if err != nil || m == nil {
			t.Fatalf("NewMirrorFromConfig(filesystem) = %v, %v", m, err)
		}
	})
	t.Run("s3 requires bucket", func(t *testing.T) {
		if _, err := NewMirrorFromConfig(context.Background(), config.MirrorConfig{Type: "s3"}); err == nil {
			t.Error("s3 mirror accepted empty bucket")
		}
	})
	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewMirrorFromConfig(context.Background(), config.MirrorConfig{Type: "carrier-pigeon"}); err == nil {
			t.Error("unknown mirror type accepted")
		}
	})
}
