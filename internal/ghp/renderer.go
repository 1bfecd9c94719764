package ghp

import "fmt"

// Artifact is the rendered output for one change: raw patch bytes, a
// self-contained HTML document, and a JSON metadata record. Artifacts are
// owned by the RepoWriter until committed.
type Artifact struct {
	Change      *ChangeRecord
	Fingerprint string
	// Stem is the derived filename stem, "<number>-<slug>".
	Stem     string
	Patch    []byte
	HTML     []byte
	Metadata []byte
}

// PatchPath returns the repository-relative path of the patch file.
func (a *Artifact) PatchPath() string { return "patches/" + a.Stem + ".patch" }

// HTMLPath returns the repository-relative path of the HTML page.
func (a *Artifact) HTMLPath() string { return "html/" + a.Stem + ".html" }

// MetadataPath returns the repository-relative path of the per-change
// metadata record.
func (a *Artifact) MetadataPath() string {
	return fmt.Sprintf("metadata/change-%04d.json", a.Change.Number)
}

// Renderer transforms a change record plus its patch into an Artifact.
// Implementations must be pure and deterministic: an identical ChangeRecord
// always yields byte-identical output, which is what makes fingerprint-based
// deduplication sound.
type Renderer interface {
	// Fingerprint hashes the fields of change that influence rendered
	// output. It must be computable without the patch so reconciliation
	// can skip patch fetches for unchanged changes.
	Fingerprint(change *ChangeRecord) string

	// Render produces the artifact set for one change. Malformed or
	// unexpected change shapes map to RenderError.
	Render(change *ChangeRecord, patch []byte) (*Artifact, error)

	// RenderIndex folds archived entries into the searchable index page.
	// Entries may arrive in any order; output ordering (updated
	// descending) is the renderer's responsibility.
	RenderIndex(entries []*ArchivedEntry) ([]byte, error)

	// RenderMetadataExport produces the aggregate machine-readable export
	// for every fetched change except those in excluded (changes that
	// failed this run). Output is deterministic: sorted by change number.
	RenderMetadataExport(changes []*ChangeRecord, excluded map[string]bool) ([]byte, error)
}
