package ghp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SyncService drives the archival pipeline: it pulls pages from the change
// source, reconciles them against the archive tracker, renders artifacts
// for changes that are new or updated, stages the results, and commits them
// as one atomic unit of work.
//
// Phase transitions per run: Idle -> Fetching -> Rendering -> Staging ->
// Committing -> Done. Fetching, Rendering and Staging can fail into
// Failed(partial); Committing fails into Failed(rolledBack); cancellation
// at a phase boundary yields Failed(cancelled). The tracker is mutated only
// after a successful commit, so an aborted run is always safe to retry.
type SyncService struct {
	source   ChangeSource
	tracker  ArchiveTracker
	renderer Renderer
	writer   RepoWriter
	logger   Logger
	clock    Clock
	sleeper  Sleeper
	idgen    IDGenerator

	backoff  Backoff
	workers  int
	pageSize int
}

// SyncOptions tunes the pipeline. Zero values select the defaults.
type SyncOptions struct {
	// Workers bounds the rendering fan-out. Rendering is pure and
	// per-change, so any positive count is safe.
	Workers int
	// PageSize is the number of changes requested per page.
	PageSize int
	// Backoff governs retries on transport and rate-limit errors.
	Backoff Backoff
}

const (
	defaultWorkers  = 4
	defaultPageSize = 100
)

// NewSyncService creates a SyncService with the provided dependencies.
func NewSyncService(source ChangeSource, tracker ArchiveTracker, renderer Renderer, writer RepoWriter, logger Logger, clock Clock, sleeper Sleeper, idgen IDGenerator, opts SyncOptions) *SyncService {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Backoff.Retries == 0 && opts.Backoff.Initial == 0 {
		opts.Backoff = DefaultBackoff()
	}

	return &SyncService{
		source:   source,
		tracker:  tracker,
		renderer: renderer,
		writer:   writer,
		logger:   logger,
		clock:    clock,
		sleeper:  sleeper,
		idgen:    idgen,
		backoff:  opts.Backoff,
		workers:  opts.Workers,
		pageSize: opts.PageSize,
	}
}

// Run executes one sync run for the given query, archiving at most limit
// changes. The returned SyncRun summary is always populated, even when the
// run aborts; err is non-nil only for run-aborting failures.
func (s *SyncService) Run(ctx context.Context, query string, limit int) (*SyncRun, error) {
	run := &SyncRun{
		ID:        s.idgen.New(),
		Query:     query,
		Limit:     limit,
		StartedAt: s.clock.Now(),
		Phase:     PhaseIdle,
	}
	s.logger.Info("sync run starting", "run", run.ID, "query", query, "limit", limit)

	run.Phase = PhaseFetching
	changes, err := s.fetchChanges(ctx, query, limit)
	if err != nil {
		return s.abort(run, FailPartial, err)
	}
	if cancelled := s.cancelledAtBoundary(ctx, run); cancelled != nil {
		return run, cancelled
	}
	s.logger.Info("fetched changes", "run", run.ID, "count", len(changes))

	run.Phase = PhaseRendering
	artifacts, err := s.renderChanges(ctx, run, changes)
	if err != nil {
		return s.abort(run, FailPartial, err)
	}
	if cancelled := s.cancelledAtBoundary(ctx, run); cancelled != nil {
		// In-flight renders have drained; their results are discarded.
		return run, cancelled
	}
	run.Processed = len(artifacts)

	if len(artifacts) == 0 {
		// Nothing new or updated: no staging, no commit. Running twice
		// against an unchanged remote produces zero new commits.
		s.logger.Info("archive up to date, nothing to commit", "run", run.ID, "skipped", run.Skipped)
		return s.finish(run)
	}

	run.Phase = PhaseStaging
	if err := s.writer.Begin(); err != nil {
		return s.abort(run, FailPartial, err)
	}

	files, removals, newEntries, err := s.buildFileSet(changes, artifacts, run)
	if err != nil {
		s.discard(run)
		return s.abort(run, FailPartial, err)
	}
	if len(removals) > 0 {
		if err := s.writer.Remove(removals); err != nil {
			s.discard(run)
			return s.abort(run, FailPartial, err)
		}
	}
	if err := s.writer.Stage(files); err != nil {
		s.discard(run)
		return s.abort(run, FailPartial, err)
	}
	if cancelled := s.cancelledAtBoundary(ctx, run); cancelled != nil {
		s.discard(run)
		return run, cancelled
	}

	run.Phase = PhaseCommitting
	commitID, err := s.writer.Commit(run.CommitMessage())
	if err != nil {
		// Staged files stay on disk for diagnosis. The tracker is not
		// updated, so a retry run reprocesses exactly these changes.
		return s.abort(run, FailRolledBack, err)
	}
	run.CommitID = commitID

	// Commit succeeded: only now does archive state move forward.
	for _, entry := range newEntries {
		if err := s.tracker.Record(entry); err != nil {
			return s.abort(run, FailPartial, fmt.Errorf("recording archive entry %s: %w", entry.ChangeID, err))
		}
	}

	s.logger.Info("sync run committed", "run", run.ID, "commit", commitID,
		"processed", run.Processed, "skipped", run.Skipped, "failed", len(run.Failures))
	return s.finish(run)
}

// fetchChanges walks pages sequentially up to limit. Page tokens depend on
// the prior page, so there is no fetch parallelism. Transient failures are
// retried with bounded backoff against the same token.
func (s *SyncService) fetchChanges(ctx context.Context, query string, limit int) ([]*ChangeRecord, error) {
	var out []*ChangeRecord
	seen := make(map[string]bool)
	token := FirstPage

	for {
		remaining := limit - len(out)
		if remaining <= 0 {
			break
		}
		size := s.pageSize
		if remaining < size {
			size = remaining
		}

		var page *Page
		err := Retry(ctx, s.sleeper, s.backoff, func() error {
			var fetchErr error
			page, fetchErr = s.source.FetchPage(ctx, query, token, size)
			return fetchErr
		}, s.classifyRemote)
		if err != nil {
			return nil, err
		}

		for _, change := range page.Changes {
			// The remote set can shift between pages; a change seen
			// twice is archived once.
			if seen[change.ID] {
				continue
			}
			seen[change.ID] = true
			out = append(out, change)
			if len(out) >= limit {
				break
			}
		}

		if page.Next == nil {
			break
		}
		token = *page.Next
	}

	// Chronological processing keeps artifact ordering stable across runs.
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// renderChanges reconciles the fetched set against the tracker and renders
// everything new or updated on a bounded worker pool. Per-change failures
// (vanished change, malformed shape) are isolated into run.Failures;
// systemic failures abort.
func (s *SyncService) renderChanges(ctx context.Context, run *SyncRun, changes []*ChangeRecord) ([]*Artifact, error) {
	type result struct {
		artifact *Artifact
		failure  *Failure
		skipped  bool
		fatal    error
	}

	jobs := make(chan *ChangeRecord)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for change := range jobs {
				artifact, failure, skipped, fatal := s.renderOne(ctx, change)
				results <- result{artifact: artifact, failure: failure, skipped: skipped, fatal: fatal}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, change := range changes {
			select {
			case jobs <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var artifacts []*Artifact
	var fatal error
	for r := range results {
		switch {
		case r.fatal != nil:
			if fatal == nil {
				fatal = r.fatal
			}
		case r.failure != nil:
			run.Failures = append(run.Failures, *r.failure)
		case r.skipped:
			run.Skipped++
		case r.artifact != nil:
			artifacts = append(artifacts, r.artifact)
		}
	}
	if fatal != nil {
		return nil, fatal
	}

	// Workers finish in scheduling order; the committed artifact set must
	// not depend on it.
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Change.Number < artifacts[j].Change.Number })
	sort.Slice(run.Failures, func(i, j int) bool { return run.Failures[i].Number < run.Failures[j].Number })
	return artifacts, nil
}

// renderOne processes a single change: reconcile, lazily fetch the patch,
// render. Exactly one of the return values is meaningful.
func (s *SyncService) renderOne(ctx context.Context, change *ChangeRecord) (artifact *Artifact, failure *Failure, skipped bool, fatal error) {
	if change.CurrentRevision == "" {
		s.logger.Warn("skipping change without current revision", "change", change.Number)
		return nil, &Failure{ChangeID: change.ID, Number: change.Number, Reason: "no current revision"}, false, nil
	}

	fingerprint := s.renderer.Fingerprint(change)
	archived, err := s.tracker.IsArchived(change.ID, fingerprint)
	if err != nil {
		return nil, nil, false, fmt.Errorf("reconciling change %s: %w", change.ID, err)
	}
	if archived {
		s.logger.Debug("change already archived", "change", change.Number)
		return nil, nil, true, nil
	}

	var patch []byte
	err = Retry(ctx, s.sleeper, s.backoff, func() error {
		var fetchErr error
		patch, fetchErr = s.source.FetchPatch(ctx, change.Number, change.CurrentRevision)
		return fetchErr
	}, s.classifyRemote)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			s.logger.Warn("change vanished between list and fetch", "change", change.Number)
			return nil, &Failure{ChangeID: change.ID, Number: change.Number, Reason: err.Error()}, false, nil
		}
		return nil, nil, false, err
	}

	a, err := s.renderer.Render(change, patch)
	if err != nil {
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			s.logger.Warn("render failed", "change", change.Number, "err", err)
			return nil, &Failure{ChangeID: change.ID, Number: change.Number, Reason: err.Error()}, false, nil
		}
		return nil, nil, false, err
	}

	s.logger.Debug("change rendered", "change", change.Number, "stem", a.Stem)
	return a, nil, false, nil
}

// buildFileSet assembles the complete staged file list for this run: the
// per-change artifacts, the regenerated index page, the aggregate metadata
// export, and the archive manifest reflecting post-commit state. It also
// returns paths of superseded artifacts whose filenames changed, and the
// tracker entries to record after a successful commit.
func (s *SyncService) buildFileSet(changes []*ChangeRecord, artifacts []*Artifact, run *SyncRun) (files []StagedFile, removals []string, newEntries []*ArchivedEntry, err error) {
	existing, err := s.tracker.AllEntries()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading archive entries: %w", err)
	}

	merged := make(map[string]*ArchivedEntry, len(existing)+len(artifacts))
	for _, e := range existing {
		merged[e.ChangeID] = e
	}

	now := s.clock.Now()
	for _, a := range artifacts {
		entry := &ArchivedEntry{
			ChangeID:    a.Change.ID,
			Number:      a.Change.Number,
			Fingerprint: a.Fingerprint,
			Subject:     a.Change.Subject,
			Project:     a.Change.Project,
			Owner:       a.Change.Owner.Name,
			Status:      string(a.Change.Status),
			Updated:     a.Change.Updated,
			ArchivedAt:  now,
			PatchPath:   a.PatchPath(),
			HTMLPath:    a.HTMLPath(),
		}

		// A superseded change whose subject changed gets a new filename
		// stem; the prior artifact files must not linger.
		if prior, ok := merged[entry.ChangeID]; ok {
			if prior.PatchPath != entry.PatchPath {
				removals = append(removals, prior.PatchPath)
			}
			if prior.HTMLPath != entry.HTMLPath {
				removals = append(removals, prior.HTMLPath)
			}
		}

		merged[entry.ChangeID] = entry
		newEntries = append(newEntries, entry)

		files = append(files,
			StagedFile{Path: a.PatchPath(), Data: a.Patch},
			StagedFile{Path: a.HTMLPath(), Data: a.HTML},
			StagedFile{Path: a.MetadataPath(), Data: a.Metadata},
		)
	}

	all := make([]*ArchivedEntry, 0, len(merged))
	for _, e := range merged {
		all = append(all, e)
	}

	index, err := s.renderer.RenderIndex(all)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rendering index: %w", err)
	}
	files = append(files, StagedFile{Path: "html/index.html", Data: index})

	export, err := s.renderer.RenderMetadataExport(changes, s.skippedOrFailed(run))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rendering metadata export: %w", err)
	}
	files = append(files, StagedFile{Path: "metadata/gerrit_export_metadata.json", Data: export})

	manifest, err := EncodeManifest(all)
	if err != nil {
		return nil, nil, nil, err
	}
	files = append(files, StagedFile{Path: "metadata/archive_manifest.json", Data: manifest})

	return files, removals, newEntries, nil
}

// skippedOrFailed returns the change IDs excluded from this run's commit so
// the metadata export can omit failed changes.
func (s *SyncService) skippedOrFailed(run *SyncRun) map[string]bool {
	out := make(map[string]bool, len(run.Failures))
	for _, f := range run.Failures {
		out[f.ChangeID] = true
	}
	return out
}

// classifyRemote decides retry behaviour for change-source errors:
// rate limits and transport hiccups back off and retry, everything else
// (auth, not-found, render) stops immediately.
func (s *SyncService) classifyRemote(err error) (RetryClass, time.Duration) {
	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		s.logger.Warn("rate limited by remote", "retry_after", rateLimited.RetryAfter)
		return RetryBackoff, rateLimited.RetryAfter
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		s.logger.Warn("transport error, will retry", "err", err)
		return RetryBackoff, 0
	}
	return RetryStop, 0
}

// cancelledAtBoundary finalizes the run as Failed(cancelled) when the
// context has been cancelled. Checked between phases only; in-flight work
// completes and is discarded.
func (s *SyncService) cancelledAtBoundary(ctx context.Context, run *SyncRun) error {
	if ctx.Err() == nil {
		return nil
	}
	run.Phase = PhaseFailed
	run.FailReason = FailCancelled
	run.FinishedAt = s.clock.Now()
	s.recordRun(run)
	s.logger.Warn("sync run cancelled", "run", run.ID)
	return ctx.Err()
}

// abort finalizes a failed run. The summary is recorded even on abort so a
// partial run stays diagnosable.
func (s *SyncService) abort(run *SyncRun, reason FailReason, err error) (*SyncRun, error) {
	run.Phase = PhaseFailed
	run.FailReason = reason
	run.FinishedAt = s.clock.Now()
	s.recordRun(run)
	s.logger.Error("sync run aborted", "run", run.ID, "reason", string(reason), "err", err)
	return run, err
}

// finish finalizes a successful run.
func (s *SyncService) finish(run *SyncRun) (*SyncRun, error) {
	run.Phase = PhaseDone
	run.FinishedAt = s.clock.Now()
	s.recordRun(run)
	return run, nil
}

func (s *SyncService) recordRun(run *SyncRun) {
	if err := s.tracker.RecordRun(run); err != nil {
		s.logger.Warn("recording run history failed", "run", run.ID, "err", err)
	}
}

func (s *SyncService) discard(run *SyncRun) {
	if err := s.writer.Discard(); err != nil {
		s.logger.Warn("discarding staged files failed", "run", run.ID, "err", err)
	}
}
