package ghp_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ghp-go/internal/ghp"
)

func manifestEntries() []*ghp.ArchivedEntry {
	archived := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return []*ghp.ArchivedEntry{
		{
			ChangeID:    "myproject~main~Ibbb",
			Number:      2,
			Fingerprint: "fp-2",
			Subject:     "Second change",
			Status:      "MERGED",
			Updated:     archived.Add(-time.Hour),
			ArchivedAt:  archived,
			PatchPath:   "patches/0002-second_change.patch",
			HTMLPath:    "html/0002-second_change.html",
		},
		{
			ChangeID:    "myproject~main~Iaaa",
			Number:      1,
			Fingerprint: "fp-1",
			Subject:     "First change",
			Status:      "MERGED",
			Updated:     archived.Add(-2 * time.Hour),
			ArchivedAt:  archived,
			PatchPath:   "patches/0001-first_change.patch",
			HTMLPath:    "html/0001-first_change.html",
		},
	}
}

func TestManifestRoundTrip(t *testing.T) {
	data, err := ghp.EncodeManifest(manifestEntries())
	if err != nil {
		t.Fatalf("EncodeManifest() error = %v", err)
	}

	m, err := ghp.DecodeManifest(data)
	if err != nil {
		t.Fatalf("DecodeManifest() error = %v", err)
	}
	if m.Version != ghp.ManifestVersion {
		t.Errorf("version = %d, want %d", m.Version, ghp.ManifestVersion)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.Entries))
	}
	if m.Entries[0].Number != 1 || m.Entries[1].Number != 2 {
		t.Errorf("entries not sorted by number: %d, %d", m.Entries[0].Number, m.Entries[1].Number)
	}
	if m.Entries[0].Fingerprint != "fp-1" {
		t.Errorf("fingerprint = %q, want fp-1", m.Entries[0].Fingerprint)
	}
}

func TestEncodeManifest_isDeterministic(t *testing.T) {
	a, err := ghp.EncodeManifest(manifestEntries())
	if err != nil {
		t.Fatalf("EncodeManifest() error = %v", err)
	}

	reversed := manifestEntries()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	b, err := ghp.EncodeManifest(reversed)
	if err != nil {
		t.Fatalf("EncodeManifest() error = %v", err)
	}

	if !bytes.Equal(a, b) {
		t.Error("manifest bytes depend on input order")
	}
	if !bytes.HasSuffix(a, []byte("\n")) {
		t.Error("manifest missing trailing newline")
	}
}

func TestDecodeManifest_rejectsNewerVersion(t *testing.T) {
	_, err := ghp.DecodeManifest([]byte(`{"version": 99, "entries": []}`))
	if err == nil || !strings.Contains(err.Error(), "version 99") {
		t.Fatalf("DecodeManifest() error = %v, want version rejection", err)
	}
}

func TestDecodeManifest_rejectsGarbage(t *testing.T) {
	if _, err := ghp.DecodeManifest([]byte("not json")); err == nil {
		t.Fatal("DecodeManifest() accepted malformed input")
	}
}
