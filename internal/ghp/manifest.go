package ghp

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ManifestVersion is bumped when the manifest layout changes incompatibly.
const ManifestVersion = 1

// Manifest is the committed mirror of the archive tracker's state. It
// travels inside the same commit as the artifacts it describes, so archive
// state and content never diverge across machines or clones: a fresh clone
// rebuilds its local tracker from this file.
type Manifest struct {
	Version int              `json:"version"`
	Entries []*ArchivedEntry `json:"entries"`
}

// EncodeManifest serializes entries deterministically (sorted by change
// number) so unchanged archives produce byte-identical manifests.
func EncodeManifest(entries []*ArchivedEntry) ([]byte, error) {
	sorted := make([]*ArchivedEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	data, err := json.MarshalIndent(Manifest{Version: ManifestVersion, Entries: sorted}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeManifest parses a committed manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, ManifestVersion)
	}
	return &m, nil
}
