package ghp

// StagedFile is one artifact file staged for commit. Path is relative to
// the repository (or export directory) root, using forward slashes.
type StagedFile struct {
	Path string
	Data []byte
}

// RepoWriter stages rendered artifacts and produces one atomic commit per
// sync run. The target branch is exclusively owned by this tool; writers
// must refuse to touch a branch with foreign history.
//
// The contract is Begin, Stage (any number of times), then exactly one of
// Commit or Discard. Commit is all-or-nothing: either every staged file
// lands in exactly one new commit, or no commit is created. Discard removes
// staged files and leaves the working tree as it was before Begin.
type RepoWriter interface {
	// Begin verifies preconditions (branch ownership) and acquires the
	// writer lock. Returns CommitPreconditionError for foreign history.
	Begin() error

	// Stage writes files into the working tree. Failures map to
	// StorageError and must abort the run before any commit.
	Stage(files []StagedFile) error

	// Remove deletes previously committed artifact files that this run
	// supersedes under a different name. Missing paths are not an error.
	Remove(paths []string) error

	// Commit records every staged file in one new commit and releases the
	// lock. On error the staged files are left in place for diagnosis and
	// the error maps to CommitError.
	Commit(message string) (commitID string, err error)

	// Discard removes files staged since Begin and releases the lock.
	Discard() error
}
