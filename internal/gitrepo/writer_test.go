package gitrepo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	git "github.com/libgit2/git2go/v34"

	"ghp-go/internal/ghp"
	"ghp-go/internal/testutil"
)

func newTestWriter(t *testing.T, path string) *GitWriter {
	t.Helper()

	w, err := NewGitWriter(path, Options{Branch: "gerrit-history"}, testutil.FixedClock(), ghp.NewNopLogger())
	if err != nil {
		t.Fatalf("NewGitWriter() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func stageAndCommit(t *testing.T, w *GitWriter, message string, files ...ghp.StagedFile) string {
	t.Helper()

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.Stage(files); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	commitID, err := w.Commit(message)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return commitID
}

func TestNewGitWriter_seedsFreshRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	w := newTestWriter(t, path)

	readme, err := os.ReadFile(filepath.Join(path, "README.md"))
	if err != nil {
		t.Fatalf("seed README not checked out: %v", err)
	}
	if !strings.HasPrefix(string(readme), readmeMarker) {
		t.Errorf("README starts with %q, want ownership marker", string(readme)[:40])
	}

	repo, err := git.OpenRepository(path)
	if err != nil {
		t.Fatalf("opening seeded repository: %v", err)
	}
	defer repo.Free()

	branch, err := repo.LookupBranch("gerrit-history", git.BranchLocal)
	if err != nil {
		t.Fatalf("archive branch missing: %v", err)
	}
	defer branch.Free()

	commit, err := repo.LookupCommit(branch.Target())
	if err != nil {
		t.Fatalf("looking up seed commit: %v", err)
	}
	defer commit.Free()
	if commit.ParentCount() != 0 {
		t.Errorf("seed commit has %d parents, want orphan root", commit.ParentCount())
	}
	if w.Begin() != nil {
		t.Error("Begin() rejects the repository this writer just seeded")
	}
	w.Discard()
}

func TestGitWriter_stageCommitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	w := newTestWriter(t, path)

	commitID := stageAndCommit(t, w, "Archive 1 change(s), skip 0 already archived, 0 failed",
		ghp.StagedFile{Path: "patches/0001-first.patch", Data: []byte("diff\n")},
		ghp.StagedFile{Path: "html/0001-first.html", Data: []byte("<html></html>\n")},
	)
	if commitID == "" {
		t.Fatal("Commit() returned empty ID")
	}

	data, err := os.ReadFile(filepath.Join(path, "patches", "0001-first.patch"))
	if err != nil || string(data) != "diff\n" {
		t.Errorf("staged file content = %q, %v", data, err)
	}

	repo, err := git.OpenRepository(path)
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	defer repo.Free()

	oid, err := git.NewOid(commitID)
	if err != nil {
		t.Fatalf("commit ID %q is not an OID: %v", commitID, err)
	}
	commit, err := repo.LookupCommit(oid)
	if err != nil {
		t.Fatalf("looking up commit: %v", err)
	}
	defer commit.Free()

	if commit.ParentCount() != 1 {
		t.Errorf("commit parents = %d, want 1 (seed)", commit.ParentCount())
	}
	tree, err := commit.Tree()
	if err != nil {
		t.Fatalf("commit tree: %v", err)
	}
	defer tree.Free()
	if entry, _ := tree.EntryByPath("patches/0001-first.patch"); entry == nil {
		t.Error("committed tree missing staged patch")
	}
}

func TestGitWriter_removeDropsSupersededFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	w := newTestWriter(t, path)

	stageAndCommit(t, w, "first",
		ghp.StagedFile{Path: "patches/0001-old_subject.patch", Data: []byte("old\n")})

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.Remove([]string{"patches/0001-old_subject.patch"}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := w.Stage([]ghp.StagedFile{{Path: "patches/0001-new_subject.patch", Data: []byte("new\n")}}); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	commitID, err := w.Commit("supersede")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	repo, err := git.OpenRepository(path)
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	defer repo.Free()
	oid, _ := git.NewOid(commitID)
	commit, err := repo.LookupCommit(oid)
	if err != nil {
		t.Fatalf("looking up commit: %v", err)
	}
	defer commit.Free()
	tree, _ := commit.Tree()
	defer tree.Free()

	if entry, _ := tree.EntryByPath("patches/0001-old_subject.patch"); entry != nil {
		t.Error("superseded file still in committed tree")
	}
	if entry, _ := tree.EntryByPath("patches/0001-new_subject.patch"); entry == nil {
		t.Error("superseding file missing from committed tree")
	}
}

func TestGitWriter_discardRestoresWorkingTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	w := newTestWriter(t, path)

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.Stage([]ghp.StagedFile{{Path: "patches/0001-abandoned.patch", Data: []byte("x\n")}}); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := w.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(path, "patches", "0001-abandoned.patch")); !os.IsNotExist(err) {
		t.Error("discarded file still on disk")
	}
	// README from the seed commit survives the checkout.
	if _, err := os.Stat(filepath.Join(path, "README.md")); err != nil {
		t.Errorf("tracked file lost on discard: %v", err)
	}
}

func TestGitWriter_lockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	w := newTestWriter(t, path)

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	second, err := NewGitWriter(path, Options{Branch: "gerrit-history"}, testutil.FixedClock(), ghp.NewNopLogger())
	if err != nil {
		t.Fatalf("NewGitWriter(second) error = %v", err)
	}
	defer second.Close()

	err = second.Begin()
	var precondition *ghp.CommitPreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("second Begin() error = %v, want CommitPreconditionError", err)
	}

	// Releasing the first writer frees the lock for the second.
	if err := w.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if err := second.Begin(); err != nil {
		t.Fatalf("Begin() after release error = %v", err)
	}
	second.Discard()
}

func TestGitWriter_refusesForeignBranch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign")

	// A repository whose gerrit-history branch was made by someone else.
	repo, err := git.InitRepository(path, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer repo.Free()

	if err := os.WriteFile(filepath.Join(path, "README.md"), []byte("# Someone's project\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	index, err := repo.Index()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	defer index.Free()
	if err := index.AddByPath("README.md"); err != nil {
		t.Fatalf("adding file: %v", err)
	}
	if err := index.Write(); err != nil {
		t.Fatalf("writing index: %v", err)
	}
	treeID, err := index.WriteTree()
	if err != nil {
		t.Fatalf("writing tree: %v", err)
	}
	tree, err := repo.LookupTree(treeID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	defer tree.Free()
	sig := &git.Signature{Name: "Someone Else", Email: "someone@example.com", When: testutil.FixedClock().Now()}
	if _, err := repo.CreateCommit("refs/heads/gerrit-history", sig, sig, "their work", tree); err != nil {
		t.Fatalf("creating foreign commit: %v", err)
	}

	w, err := NewGitWriter(path, Options{Branch: "gerrit-history"}, testutil.FixedClock(), ghp.NewNopLogger())
	if err != nil {
		t.Fatalf("NewGitWriter() error = %v", err)
	}
	defer w.Close()

	err = w.Begin()
	var precondition *ghp.CommitPreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("Begin() error = %v, want CommitPreconditionError", err)
	}
	if !strings.Contains(precondition.Reason, "foreign history") {
		t.Errorf("reason = %q", precondition.Reason)
	}
}

func TestGitWriter_seedsBranchInExistingRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing")
	if _, err := git.InitRepository(path, false); err != nil {
		t.Fatalf("init: %v", err)
	}

	w := newTestWriter(t, path)
	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v, want seeded archive branch", err)
	}
	w.Discard()
}

func TestDirWriter_exportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export")
	w := NewDirWriter(path)

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.Stage([]ghp.StagedFile{{Path: "html/index.html", Data: []byte("<html>\n")}}); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	commitID, err := w.Commit("ignored")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commitID != "" {
		t.Errorf("commit ID = %q, want empty for plain export", commitID)
	}

	data, err := os.ReadFile(filepath.Join(path, "html", "index.html"))
	if err != nil || string(data) != "<html>\n" {
		t.Errorf("exported file = %q, %v", data, err)
	}
}

func TestDirWriter_discardRemovesStagedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export")
	w := NewDirWriter(path)

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.Stage([]ghp.StagedFile{{Path: "patches/0001-x.patch", Data: []byte("x\n")}}); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := w.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(path, "patches", "0001-x.patch")); !os.IsNotExist(err) {
		t.Error("discarded export file still on disk")
	}
}
