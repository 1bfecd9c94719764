package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/libgit2/git2go/v34"

	"ghp-go/internal/ghp"
)

// readmeMarker is the first line of the README committed when this tool
// initializes a repository. Its presence in the archive branch's root
// commit is what identifies the branch as tool-owned; a branch whose root
// commit lacks it is foreign history and is never written to.
const readmeMarker = "# Gerrit History Preservation"

const lockFileName = "ghp.lock"

// Options configures a GitWriter.
type Options struct {
	// Branch is the archive branch, exclusively owned by this tool.
	Branch string
	// AuthorName and AuthorEmail sign archive commits.
	AuthorName  string
	AuthorEmail string
}

// GitWriter implements ghp.RepoWriter on a local git repository via
// libgit2. One writer owns one repository path; Begin/Commit bracket a
// single run and are serialized across processes by a lock file.
type GitWriter struct {
	repo   *git.Repository
	path   string
	branch string
	name   string
	email  string
	clock  ghp.Clock
	logger ghp.Logger

	locked bool
	staged map[string]bool
}

var _ ghp.RepoWriter = (*GitWriter)(nil)

// NewGitWriter opens the repository at path, initializing it with a seed
// README commit on the archive branch when it does not exist yet.
func NewGitWriter(path string, opts Options, clock ghp.Clock, logger ghp.Logger) (*GitWriter, error) {
	if opts.Branch == "" {
		opts.Branch = "gerrit-history"
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "Gerrit History Preserver"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "ghp@localhost"
	}

	w := &GitWriter{
		path:   path,
		branch: opts.Branch,
		name:   opts.AuthorName,
		email:  opts.AuthorEmail,
		clock:  clock,
		logger: logger,
		staged: make(map[string]bool),
	}

	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		repo, err := git.OpenRepository(path)
		if err != nil {
			return nil, &ghp.StorageError{Err: fmt.Errorf("opening repository %s: %w", path, err)}
		}
		w.repo = repo

		if err := w.checkoutBranch(); err != nil {
			repo.Free()
			return nil, err
		}
		return w, nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, &ghp.StorageError{Err: fmt.Errorf("creating repository directory: %w", err)}
	}
	repo, err := git.InitRepository(path, false)
	if err != nil {
		return nil, &ghp.StorageError{Err: fmt.Errorf("initializing repository %s: %w", path, err)}
	}
	w.repo = repo

	if err := w.seed(); err != nil {
		repo.Free()
		return nil, err
	}
	logger.Info("initialized archive repository", "path", path, "branch", w.branch)
	return w, nil
}

// seed creates the README root commit on the archive branch and checks it
// out. The commit has no parents, so the archive branch carries tool
// history only even inside a pre-existing repository. The README content
// doubles as the branch ownership marker.
func (w *GitWriter) seed() error {
	readme := fmt.Sprintf(`%s

This repository preserves Gerrit review history.

- Branch `+"`%s`"+`: Contains patch files and HTML review data
- `+"`patches/`"+` directory: Patch files for each change
- `+"`html/`"+` directory: Browsable HTML review data
- `+"`metadata/`"+` directory: Machine-readable change metadata
`, readmeMarker, w.branch)

	blobID, err := w.repo.CreateBlobFromBuffer([]byte(readme))
	if err != nil {
		return &ghp.StorageError{Err: fmt.Errorf("writing seed README blob: %w", err)}
	}

	builder, err := w.repo.TreeBuilder()
	if err != nil {
		return &ghp.StorageError{Err: err}
	}
	defer builder.Free()

	if err := builder.Insert("README.md", blobID, git.FilemodeBlob); err != nil {
		return &ghp.StorageError{Err: err}
	}
	treeID, err := builder.Write()
	if err != nil {
		return &ghp.StorageError{Err: err}
	}
	tree, err := w.repo.LookupTree(treeID)
	if err != nil {
		return &ghp.StorageError{Err: err}
	}
	defer tree.Free()

	sig := w.signature()
	if _, err := w.repo.CreateCommit(w.refName(), sig, sig, "Initial commit: Gerrit history preservation", tree); err != nil {
		return &ghp.StorageError{Err: fmt.Errorf("creating seed commit: %w", err)}
	}

	if err := w.repo.SetHead(w.refName()); err != nil {
		return &ghp.StorageError{Err: err}
	}
	return w.checkoutForce()
}

// checkoutBranch points HEAD at the archive branch, seeding the branch if
// the repository exists but has never been archived into, and aligns the
// working tree with the branch tip, discarding leftovers from an
// interrupted prior run.
func (w *GitWriter) checkoutBranch() error {
	branch, err := w.repo.LookupBranch(w.branch, git.BranchLocal)
	if err != nil {
		w.logger.Info("creating archive branch in existing repository", "branch", w.branch)
		return w.seed()
	}
	branch.Free()

	if err := w.repo.SetHead(w.refName()); err != nil {
		return &ghp.StorageError{Err: err}
	}
	return w.checkoutForce()
}

func (w *GitWriter) checkoutForce() error {
	err := w.repo.CheckoutHead(&git.CheckoutOptions{
		Strategy: git.CheckoutForce | git.CheckoutRemoveUntracked,
	})
	if err != nil {
		return &ghp.StorageError{Err: fmt.Errorf("checking out %s: %w", w.branch, err)}
	}
	return nil
}

// Begin verifies branch ownership and takes the writer lock.
func (w *GitWriter) Begin() error {
	if err := w.verifyOwnership(); err != nil {
		return err
	}

	lock := filepath.Join(w.path, ".git", lockFileName)
	f, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return &ghp.CommitPreconditionError{
				Branch: w.branch,
				Reason: "another archival run holds the repository lock",
			}
		}
		return &ghp.StorageError{Err: fmt.Errorf("acquiring repository lock: %w", err)}
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	w.locked = true
	w.staged = make(map[string]bool)
	return nil
}

// verifyOwnership walks to the archive branch's root commit and requires
// the tool's README marker in its tree.
func (w *GitWriter) verifyOwnership() error {
	branch, err := w.repo.LookupBranch(w.branch, git.BranchLocal)
	if err != nil {
		return &ghp.CommitPreconditionError{Branch: w.branch, Reason: "archive branch missing"}
	}
	defer branch.Free()

	commit, err := w.repo.LookupCommit(branch.Target())
	if err != nil {
		return &ghp.StorageError{Err: err}
	}
	for commit.ParentCount() > 0 {
		parent := commit.Parent(0)
		commit.Free()
		commit = parent
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return &ghp.StorageError{Err: err}
	}
	defer tree.Free()

	entry := tree.EntryByName("README.md")
	if entry == nil {
		return &ghp.CommitPreconditionError{
			Branch: w.branch,
			Reason: "branch root commit carries no archive README; refusing to write into foreign history",
		}
	}

	blob, err := w.repo.LookupBlob(entry.Id)
	if err != nil {
		return &ghp.StorageError{Err: err}
	}
	defer blob.Free()

	if !strings.HasPrefix(string(blob.Contents()), readmeMarker) {
		return &ghp.CommitPreconditionError{
			Branch: w.branch,
			Reason: "branch root README was not written by this tool; refusing to write into foreign history",
		}
	}
	return nil
}

// Stage writes artifact files into the working tree.
func (w *GitWriter) Stage(files []ghp.StagedFile) error {
	for _, file := range files {
		target := filepath.Join(w.path, filepath.FromSlash(file.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &ghp.StorageError{Err: fmt.Errorf("creating directory for %s: %w", file.Path, err)}
		}
		if err := os.WriteFile(target, file.Data, 0o644); err != nil {
			return &ghp.StorageError{Err: fmt.Errorf("writing %s: %w", file.Path, err)}
		}
		w.staged[file.Path] = true
	}
	return nil
}

// Remove deletes superseded artifact files from the working tree. Missing
// paths are ignored.
func (w *GitWriter) Remove(paths []string) error {
	for _, p := range paths {
		target := filepath.Join(w.path, filepath.FromSlash(p))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return &ghp.StorageError{Err: fmt.Errorf("removing %s: %w", p, err)}
		}
	}
	return nil
}

// Commit stages everything in the working tree into the index and creates
// one commit on the archive branch. The lock is released on success; on
// failure staged files stay in place for diagnosis and the lock is
// released so a later run can retry.
func (w *GitWriter) Commit(message string) (string, error) {
	defer w.unlock()

	index, err := w.repo.Index()
	if err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	defer index.Free()

	if err := index.AddAll([]string{"."}, git.IndexAddDefault, nil); err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	if err := index.UpdateAll([]string{"."}, nil); err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	if err := index.Write(); err != nil {
		return "", &ghp.CommitError{Err: err}
	}

	treeID, err := index.WriteTree()
	if err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	tree, err := w.repo.LookupTree(treeID)
	if err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	defer tree.Free()

	branch, err := w.repo.LookupBranch(w.branch, git.BranchLocal)
	if err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	parent, err := w.repo.LookupCommit(branch.Target())
	branch.Free()
	if err != nil {
		return "", &ghp.CommitError{Err: err}
	}
	defer parent.Free()

	sig := w.signature()
	oid, err := w.repo.CreateCommit(w.refName(), sig, sig, message, tree, parent)
	if err != nil {
		return "", &ghp.CommitError{Err: err}
	}

	w.staged = make(map[string]bool)
	return oid.String(), nil
}

// Discard removes files staged since Begin, restores tracked files from
// the branch tip, and releases the lock.
func (w *GitWriter) Discard() error {
	defer w.unlock()

	var firstErr error
	for p := range w.staged {
		target := filepath.Join(w.path, filepath.FromSlash(p))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	w.staged = make(map[string]bool)

	if err := w.checkoutForce(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return &ghp.StorageError{Err: firstErr}
	}
	return nil
}

// Close releases the underlying repository handle.
func (w *GitWriter) Close() error {
	if w.locked {
		w.unlock()
	}
	if w.repo != nil {
		w.repo.Free()
		w.repo = nil
	}
	return nil
}

func (w *GitWriter) unlock() {
	if !w.locked {
		return
	}
	if err := os.Remove(filepath.Join(w.path, ".git", lockFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("failed to release repository lock", "error", err)
	}
	w.locked = false
}

func (w *GitWriter) refName() string {
	return "refs/heads/" + w.branch
}

func (w *GitWriter) signature() *git.Signature {
	return &git.Signature{
		Name:  w.name,
		Email: w.email,
		When:  w.clock.Now(),
	}
}
