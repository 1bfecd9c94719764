package ghp

import (
	"fmt"
	"time"
)

// TransportError wraps network and TLS failures talking to the change
// source. Retried with backoff up to a bounded count, then fatal to the run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// AuthError indicates missing or rejected credentials. Fatal immediately,
// never retried.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d)", e.Status)
}

// NotFoundError indicates a change vanished between listing and fetch.
// The change is skipped and the run continues.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.What) }

// RateLimitedError signals the remote asked us to back off. RetryAfter is
// zero when the server gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RenderError wraps a per-change rendering failure. Isolated: recorded in
// the run summary, the change is excluded from the commit, the run
// continues.
type RenderError struct {
	ChangeID string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering change %s: %v", e.ChangeID, e.Err)
}
func (e *RenderError) Unwrap() error { return e.Err }

// StorageError wraps disk or permission failures while staging artifacts.
// Fatal: the run aborts before any commit.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("staging artifacts: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// CommitPreconditionError means the archive branch exists with history this
// tool did not produce. Fatal; no commit is attempted.
type CommitPreconditionError struct {
	Branch string
	Reason string
}

func (e *CommitPreconditionError) Error() string {
	return fmt.Sprintf("branch %q has foreign history: %s", e.Branch, e.Reason)
}

// CommitError wraps a git failure after staging succeeded. Staged files are
// retained for diagnosis; the tracker is untouched so a retry run
// reprocesses exactly the failed changes.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("committing artifacts: %v", e.Err) }
func (e *CommitError) Unwrap() error { return e.Err }
