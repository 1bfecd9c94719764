package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"sort"
	"strings"
	"time"

	"ghp-go/internal/ghp"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const pageTimeLayout = "2006-01-02 15:04:05"

// HTMLRenderer renders changes into self-contained HTML pages plus the
// searchable index. It implements ghp.Renderer and is safe for concurrent
// use: templates are parsed once and rendering has no mutable state.
type HTMLRenderer struct {
	change *template.Template
	index  *template.Template
}

var _ ghp.Renderer = (*HTMLRenderer)(nil)

// New parses the embedded templates and returns a ready renderer.
func New() (*HTMLRenderer, error) {
	change, err := template.ParseFS(templateFS, "templates/change.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing change template: %w", err)
	}
	index, err := template.ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}
	return &HTMLRenderer{change: change, index: index}, nil
}

// Fingerprint implements ghp.Renderer.
func (r *HTMLRenderer) Fingerprint(change *ghp.ChangeRecord) string {
	return Fingerprint(change)
}

// Render produces the patch, HTML and metadata artifacts for one change.
func (r *HTMLRenderer) Render(change *ghp.ChangeRecord, patch []byte) (*ghp.Artifact, error) {
	if change.ID == "" || change.Number <= 0 {
		return nil, &ghp.RenderError{
			ChangeID: change.ID,
			Err:      fmt.Errorf("change %d has no usable identity", change.Number),
		}
	}

	var buf bytes.Buffer
	if err := r.change.Execute(&buf, newChangeView(change)); err != nil {
		return nil, &ghp.RenderError{ChangeID: change.ID, Err: err}
	}

	metadata, err := encodeMetadata(change)
	if err != nil {
		return nil, &ghp.RenderError{ChangeID: change.ID, Err: err}
	}

	return &ghp.Artifact{
		Change:      change,
		Fingerprint: Fingerprint(change),
		Stem:        Stem(change),
		Patch:       patch,
		HTML:        buf.Bytes(),
		Metadata:    metadata,
	}, nil
}

// RenderIndex implements ghp.Renderer. Entries are sorted by updated
// timestamp descending, newest first, with change number as tiebreaker.
func (r *HTMLRenderer) RenderIndex(entries []*ghp.ArchivedEntry) ([]byte, error) {
	rows := make([]indexRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, indexRow{
			Href:        path.Base(e.HTMLPath),
			Number:      e.Number,
			Subject:     e.Subject,
			Project:     e.Project,
			Status:      e.Status,
			StatusClass: strings.ToLower(e.Status),
			Owner:       e.Owner,
			Updated:     formatTime(e.Updated),
			updated:     e.Updated,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].updated.Equal(rows[j].updated) {
			return rows[i].updated.After(rows[j].updated)
		}
		return rows[i].Number > rows[j].Number
	})

	var buf bytes.Buffer
	if err := r.index.Execute(&buf, indexView{Rows: rows}); err != nil {
		return nil, fmt.Errorf("rendering index: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderMetadataExport implements ghp.Renderer.
func (r *HTMLRenderer) RenderMetadataExport(changes []*ghp.ChangeRecord, excluded map[string]bool) ([]byte, error) {
	return encodeMetadataExport(changes, excluded)
}

type indexView struct {
	Rows []indexRow
}

type indexRow struct {
	Href        string
	Number      int
	Subject     string
	Project     string
	Status      string
	StatusClass string
	Owner       string
	Updated     string

	updated time.Time
}

type changeView struct {
	Number        int
	Subject       string
	Project       string
	Branch        string
	Status        string
	StatusClass   string
	OwnerName     string
	OwnerEmail    string
	Created       string
	Updated       string
	CommitMessage string
	Labels        []labelView
	Files         []fileView
	Messages      []messageView
	CommentFiles  []fileCommentsView
}

type labelView struct {
	Name  string
	Votes []voteView
}

type voteView struct {
	Reviewer string
	Value    string
}

type fileView struct {
	Path     string
	Status   string
	Inserted int
	Deleted  int
}

type messageView struct {
	Author string
	Date   string
	Body   string
}

type fileCommentsView struct {
	File    string
	Threads []*threadView
}

type threadView struct {
	Anchor  string
	Author  string
	Date    string
	Line    int
	Body    string
	Broken  bool
	Replies []*threadView
}

func newChangeView(change *ghp.ChangeRecord) changeView {
	view := changeView{
		Number:        change.Number,
		Subject:       change.Subject,
		Project:       change.Project,
		Branch:        change.Branch,
		Status:        string(change.Status),
		StatusClass:   strings.ToLower(string(change.Status)),
		OwnerName:     change.Owner.Name,
		OwnerEmail:    change.Owner.Email,
		Created:       formatTime(change.Created),
		Updated:       formatTime(change.Updated),
		CommitMessage: change.CommitMessage,
		Labels:        labelViews(change.Labels),
		Files:         fileViews(change.Files),
	}

	for _, msg := range change.Messages {
		view.Messages = append(view.Messages, messageView{
			Author: msg.Author.Name,
			Date:   formatTime(msg.Date),
			Body:   msg.Body,
		})
	}

	for _, ft := range ThreadComments(change.Comments) {
		view.CommentFiles = append(view.CommentFiles, fileCommentsView{
			File:    ft.File,
			Threads: threadViews(ft.Threads),
		})
	}
	return view
}

// labelViews orders labels by name and each label's votes by value
// descending, then reviewer, so approvals read before objections.
func labelViews(labels map[string][]ghp.Vote) []labelView {
	if len(labels) == 0 {
		return nil
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]labelView, 0, len(names))
	for _, name := range names {
		if len(labels[name]) == 0 {
			continue
		}
		votes := append([]ghp.Vote(nil), labels[name]...)
		sort.SliceStable(votes, func(i, j int) bool {
			if votes[i].Value != votes[j].Value {
				return votes[i].Value > votes[j].Value
			}
			return votes[i].Reviewer < votes[j].Reviewer
		})

		lv := labelView{Name: name}
		for _, v := range votes {
			lv.Votes = append(lv.Votes, voteView{
				Reviewer: v.Reviewer,
				Value:    fmt.Sprintf("%+d", v.Value),
			})
		}
		out = append(out, lv)
	}
	return out
}

// fileViews drops the synthetic /COMMIT_MSG pseudo-file Gerrit includes in
// every revision's file list.
func fileViews(files []ghp.FileChange) []fileView {
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		if f.Path == "/COMMIT_MSG" {
			continue
		}
		out = append(out, fileView{
			Path:     f.Path,
			Status:   f.Status,
			Inserted: f.LinesInserted,
			Deleted:  f.LinesDeleted,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func threadViews(threads []*Thread) []*threadView {
	out := make([]*threadView, 0, len(threads))
	for _, t := range threads {
		out = append(out, &threadView{
			Anchor:  commentAnchor(t.Comment),
			Author:  t.Comment.Author.Name,
			Date:    formatTime(t.Comment.Written),
			Line:    t.Comment.Line,
			Body:    t.Comment.Body,
			Broken:  t.Broken,
			Replies: threadViews(t.Replies),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(pageTimeLayout)
}
