package ghp

import (
	"fmt"
	"time"
)

// Phase is the orchestrator's position in the pipeline state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseRendering  Phase = "rendering"
	PhaseStaging    Phase = "staging"
	PhaseCommitting Phase = "committing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// FailReason qualifies PhaseFailed.
type FailReason string

const (
	// FailNone means the run did not fail.
	FailNone FailReason = ""
	// FailPartial means the run aborted before commit; nothing was
	// committed and the tracker is unchanged.
	FailPartial FailReason = "partial"
	// FailRolledBack means the commit itself failed; staged files are
	// retained on disk for diagnosis but the tracker is unchanged.
	FailRolledBack FailReason = "rolledBack"
	// FailCancelled means the run was cancelled at a phase boundary.
	FailCancelled FailReason = "cancelled"
)

// Failure records one change that could not be archived during a run.
type Failure struct {
	ChangeID string `json:"change_id"`
	Number   int    `json:"number"`
	Reason   string `json:"reason"`
}

// SyncRun is one invocation of the orchestrator. It is created when the run
// starts, mutated as pages are processed, and finalized when the run commits
// or aborts. The summary is always produced, even on abort.
type SyncRun struct {
	ID         string     `json:"id"`
	Query      string     `json:"query"`
	Limit      int        `json:"limit"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Phase      Phase      `json:"phase"`
	FailReason FailReason `json:"fail_reason,omitempty"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Failures   []Failure  `json:"failures,omitempty"`
	CommitID   string     `json:"commit_id,omitempty"`
}

// Succeeded reports whether the run completed. Isolated per-change failures
// do not make a run unsuccessful.
func (r *SyncRun) Succeeded() bool {
	return r.Phase == PhaseDone
}

// CommitMessage derives the deterministic commit message for this run's
// artifact commit from the summary counts.
func (r *SyncRun) CommitMessage() string {
	return fmt.Sprintf("Archive %d change(s), skip %d already archived, %d failed\n\nQuery: %s",
		r.Processed, r.Skipped, len(r.Failures), r.Query)
}

// Summary is a one-line human-readable account of the run.
func (r *SyncRun) Summary() string {
	outcome := string(r.Phase)
	if r.FailReason != FailNone {
		outcome = fmt.Sprintf("%s(%s)", r.Phase, r.FailReason)
	}
	return fmt.Sprintf("run %s: %s, processed=%d skipped=%d failed=%d",
		r.ID, outcome, r.Processed, r.Skipped, len(r.Failures))
}
