package render

import (
	"encoding/json"
	"sort"

	"ghp-go/internal/ghp"
)

// MetadataRecord is the machine-readable export form of one change: the
// full change record plus the derived artifact locations.
type MetadataRecord struct {
	Change      *ghp.ChangeRecord `json:"change"`
	Fingerprint string            `json:"fingerprint"`
	FileStem    string            `json:"file_stem"`
	PatchPath   string            `json:"patch_path"`
	HTMLPath    string            `json:"html_path"`
}

func newMetadataRecord(change *ghp.ChangeRecord) MetadataRecord {
	stem := Stem(change)
	return MetadataRecord{
		Change:      change,
		Fingerprint: Fingerprint(change),
		FileStem:    stem,
		PatchPath:   "patches/" + stem + ".patch",
		HTMLPath:    "html/" + stem + ".html",
	}
}

// encodeMetadata marshals a per-change metadata record.
func encodeMetadata(change *ghp.ChangeRecord) ([]byte, error) {
	data, err := json.MarshalIndent(newMetadataRecord(change), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// encodeMetadataExport marshals the aggregate export: every change in
// changes except those whose ID appears in excluded, sorted by number.
func encodeMetadataExport(changes []*ghp.ChangeRecord, excluded map[string]bool) ([]byte, error) {
	records := make([]MetadataRecord, 0, len(changes))
	for _, change := range changes {
		if excluded[change.ID] {
			continue
		}
		records = append(records, newMetadataRecord(change))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Change.Number < records[j].Change.Number
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
