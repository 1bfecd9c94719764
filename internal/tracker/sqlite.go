package tracker

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ghp-go/internal/ghp"
	"ghp-go/internal/tracker/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteTracker implements the ArchiveTracker interface using SQLite.
type SQLiteTracker struct {
	db   *sql.DB
	path string
}

var _ ghp.ArchiveTracker = (*SQLiteTracker)(nil)

// NewSQLiteTracker creates a new SQLite-backed tracker and migrates its
// schema to the latest version. path can be a file path or ":memory:".
func NewSQLiteTracker(path string) (*SQLiteTracker, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating tracker database: %w", err)
	}

	return &SQLiteTracker{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// IsArchived reports whether changeID is recorded with exactly this
// fingerprint.
func (s *SQLiteTracker) IsArchived(changeID, fingerprint string) (bool, error) {
	var stored string
	err := s.db.QueryRow(
		"SELECT fingerprint FROM archived_entries WHERE change_id = ?", changeID,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking archived state: %w", err)
	}
	return stored == fingerprint, nil
}

// Lookup returns the entry for changeID, or nil if never archived.
func (s *SQLiteTracker) Lookup(changeID string) (*ghp.ArchivedEntry, error) {
	row := s.db.QueryRow(`
		SELECT change_id, number, fingerprint, subject, project, owner,
		       status, updated, archived_at, patch_path, html_path
		FROM archived_entries WHERE change_id = ?`, changeID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up archived entry: %w", err)
	}
	return entry, nil
}

// Record inserts or supersedes the entry for entry.ChangeID.
func (s *SQLiteTracker) Record(entry *ghp.ArchivedEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO archived_entries
			(change_id, number, fingerprint, subject, project, owner,
			 status, updated, archived_at, patch_path, html_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(change_id) DO UPDATE SET
			number      = excluded.number,
			fingerprint = excluded.fingerprint,
			subject     = excluded.subject,
			project     = excluded.project,
			owner       = excluded.owner,
			status      = excluded.status,
			updated     = excluded.updated,
			archived_at = excluded.archived_at,
			patch_path  = excluded.patch_path,
			html_path   = excluded.html_path`,
		entry.ChangeID, entry.Number, entry.Fingerprint, entry.Subject,
		entry.Project, entry.Owner, entry.Status, entry.Updated,
		entry.ArchivedAt, entry.PatchPath, entry.HTMLPath)
	if err != nil {
		return fmt.Errorf("recording archived entry: %w", err)
	}
	return nil
}

// AllEntries returns every archived entry, ordered by change number.
func (s *SQLiteTracker) AllEntries() ([]*ghp.ArchivedEntry, error) {
	rows, err := s.db.Query(`
		SELECT change_id, number, fingerprint, subject, project, owner,
		       status, updated, archived_at, patch_path, html_path
		FROM archived_entries ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}
	defer rows.Close()

	var entries []*ghp.ArchivedEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning archived entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}
	return entries, nil
}

// RecordRun persists a finalized sync run.
func (s *SQLiteTracker) RecordRun(run *ghp.SyncRun) error {
	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("encoding run failures: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sync_runs
			(id, query, run_limit, started_at, finished_at, phase,
			 fail_reason, processed, skipped, failures, commit_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.Limit, run.StartedAt, run.FinishedAt,
		string(run.Phase), string(run.FailReason), run.Processed,
		run.Skipped, string(failures), run.CommitID)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// Runs returns up to limit recorded runs, newest first.
func (s *SQLiteTracker) Runs(limit int) ([]*ghp.SyncRun, error) {
	rows, err := s.db.Query(`
		SELECT id, query, run_limit, started_at, finished_at, phase,
		       fail_reason, processed, skipped, failures, commit_id
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*ghp.SyncRun
	for rows.Next() {
		var run ghp.SyncRun
		var phase, failReason, failures string
		err := rows.Scan(&run.ID, &run.Query, &run.Limit, &run.StartedAt,
			&run.FinishedAt, &phase, &failReason, &run.Processed,
			&run.Skipped, &failures, &run.CommitID)
		if err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.Phase = ghp.Phase(phase)
		run.FailReason = ghp.FailReason(failReason)
		if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
			return nil, fmt.Errorf("decoding run failures: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteTracker) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteTracker) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*ghp.ArchivedEntry, error) {
	var entry ghp.ArchivedEntry
	err := row.Scan(&entry.ChangeID, &entry.Number, &entry.Fingerprint,
		&entry.Subject, &entry.Project, &entry.Owner, &entry.Status,
		&entry.Updated, &entry.ArchivedAt, &entry.PatchPath, &entry.HTMLPath)
	if err != nil {
		return nil, err
	}
	entry.Updated = entry.Updated.UTC()
	entry.ArchivedAt = entry.ArchivedAt.UTC()
	return &entry, nil
}
