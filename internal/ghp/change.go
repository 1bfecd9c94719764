package ghp

import "time"

// ChangeStatus is the review state of a change at fetch time.
type ChangeStatus string

const (
	StatusNew       ChangeStatus = "NEW"
	StatusMerged    ChangeStatus = "MERGED"
	StatusAbandoned ChangeStatus = "ABANDONED"
)

// Account identifies a Gerrit user. Email may be empty for older servers
// or anonymous fetches.
type Account struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Vote is one reviewer's vote on a label.
type Vote struct {
	Reviewer string `json:"reviewer"`
	Value    int    `json:"value"`
}

// Message is a top-level review message on a change.
type Message struct {
	Author Account   `json:"author"`
	Date   time.Time `json:"date"`
	Body   string    `json:"body"`
}

// Comment is an inline comment on a file. InReplyTo references the parent
// comment's ID when the comment is a reply; it is empty for top-level
// comments. Line 0 means a file-level comment.
type Comment struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Author    Account   `json:"author"`
	Written   time.Time `json:"written"`
	Body      string    `json:"body"`
	InReplyTo string    `json:"in_reply_to,omitempty"`
}

// FileChange records one file touched by the current revision.
// Status follows Gerrit's single-letter convention: A added, M modified,
// D deleted, R renamed, C copied.
type FileChange struct {
	Path          string `json:"path"`
	Status        string `json:"status"`
	LinesInserted int    `json:"lines_inserted"`
	LinesDeleted  int    `json:"lines_deleted"`
}

// ChangeRecord is one Gerrit change snapshot at fetch time. It is produced
// by a ChangeSource, consumed by the Renderer, and discarded after the run.
type ChangeRecord struct {
	// ID is Gerrit's triplet identifier (project~branch~Change-Id),
	// globally unique within one archive.
	ID     string `json:"id"`
	Number int    `json:"number"`

	Project string       `json:"project"`
	Branch  string       `json:"branch"`
	Status  ChangeStatus `json:"status"`
	Owner   Account      `json:"owner"`
	Subject string       `json:"subject"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// CurrentRevision is the patch set considered canonical for archival.
	// A change without one cannot be archived.
	CurrentRevision string `json:"current_revision"`
	CommitMessage   string `json:"commit_message,omitempty"`
	CommitAuthor    string `json:"commit_author,omitempty"`

	// Labels maps label name ("Code-Review") to its votes. A label may
	// legitimately carry zero votes.
	Labels map[string][]Vote `json:"labels,omitempty"`

	Messages []Message    `json:"messages,omitempty"`
	Comments []Comment    `json:"comments,omitempty"`
	Files    []FileChange `json:"files,omitempty"`
}
