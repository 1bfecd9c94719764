package tracker

import (
	"fmt"
	"os"

	"ghp-go/internal/ghp"
)

// SeedFromManifest rebuilds an empty tracker from the manifest committed
// into the history repository. This makes the tracker reconstructible from
// a fresh clone: the repo carries the authoritative archived set, the
// local database is only a cache of it.
//
// A non-empty tracker is left untouched; the database is then assumed to
// be at least as current as the manifest. Returns the number of entries
// seeded.
func SeedFromManifest(t ghp.ArchiveTracker, manifestPath string) (int, error) {
	existing, err := t.AllEntries()
	if err != nil {
		return 0, fmt.Errorf("inspecting tracker: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading manifest: %w", err)
	}

	manifest, err := ghp.DecodeManifest(data)
	if err != nil {
		return 0, fmt.Errorf("decoding manifest: %w", err)
	}

	for _, entry := range manifest.Entries {
		if err := t.Record(entry); err != nil {
			return 0, fmt.Errorf("seeding entry %s: %w", entry.ChangeID, err)
		}
	}
	return len(manifest.Entries), nil
}
