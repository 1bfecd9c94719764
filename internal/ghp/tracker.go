package ghp

import "time"

// ArchivedEntry records that a change has been archived with a given
// content fingerprint. Enough change metadata is denormalized into the
// entry to regenerate the index page without re-fetching anything.
type ArchivedEntry struct {
	ChangeID    string    `json:"change_id"`
	Number      int       `json:"number"`
	Fingerprint string    `json:"fingerprint"`
	Subject     string    `json:"subject"`
	Project     string    `json:"project"`
	Owner       string    `json:"owner"`
	Status      string    `json:"status"`
	Updated     time.Time `json:"updated"`
	ArchivedAt  time.Time `json:"archived_at"`
	PatchPath   string    `json:"patch_path"`
	HTMLPath    string    `json:"html_path"`
}

// ArchiveTracker maintains the set of already-archived changes and their
// fingerprints, persisted across runs. It is mutated only by the
// orchestrating goroutine, and only after a successful commit.
type ArchiveTracker interface {
	// IsArchived reports whether changeID is archived with exactly this
	// fingerprint. A differing fingerprint returns false (the change will
	// be re-rendered and superseded).
	IsArchived(changeID, fingerprint string) (bool, error)

	// Lookup returns the entry for changeID, or nil if never archived.
	Lookup(changeID string) (*ArchivedEntry, error)

	// Record inserts or supersedes the entry for entry.ChangeID. At most
	// one entry exists per change: the archive tracks latest known state,
	// not version history.
	Record(entry *ArchivedEntry) error

	// AllEntries returns every archived entry, for index regeneration and
	// manifest export. Order is unspecified.
	AllEntries() ([]*ArchivedEntry, error)

	// RecordRun persists a finalized sync run for `ghp runs`.
	RecordRun(run *SyncRun) error

	// Runs returns up to limit recorded runs, newest first.
	Runs(limit int) ([]*SyncRun, error)

	Close() error
}
