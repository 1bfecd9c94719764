package gerrit

import (
	"fmt"
	"sort"
	"time"

	"ghp-go/internal/ghp"
)

// gerritTimeLayout is the timestamp format Gerrit uses in JSON responses:
// UTC with nanosecond precision and no zone designator.
const gerritTimeLayout = "2006-01-02 15:04:05.000000000"

// parseTime parses a Gerrit timestamp. Empty strings yield the zero time;
// Gerrit omits timestamps in some historic payloads.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(gerritTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// convertChange maps the wire representation of one change plus its
// comments and files onto the domain record.
func convertChange(info *changeInfo, comments map[string][]commentInfo, files map[string]fileInfo) (*ghp.ChangeRecord, error) {
	created, err := parseTime(info.Created)
	if err != nil {
		return nil, fmt.Errorf("change %d: %w", info.Number, err)
	}
	updated, err := parseTime(info.Updated)
	if err != nil {
		return nil, fmt.Errorf("change %d: %w", info.Number, err)
	}

	record := &ghp.ChangeRecord{
		ID:              info.ID,
		Number:          info.Number,
		Project:         info.Project,
		Branch:          info.Branch,
		Status:          ghp.ChangeStatus(info.Status),
		Owner:           ghp.Account{Name: accountName(info.Owner), Email: info.Owner.Email},
		Subject:         info.Subject,
		Created:         created,
		Updated:         updated,
		CurrentRevision: info.CurrentRevision,
	}

	if rev, ok := info.Revisions[info.CurrentRevision]; ok {
		record.CommitMessage = rev.Commit.Message
		record.CommitAuthor = rev.Commit.Author.Name
	}

	if len(info.Labels) > 0 {
		record.Labels = make(map[string][]ghp.Vote, len(info.Labels))
		for name, label := range info.Labels {
			votes := make([]ghp.Vote, 0, len(label.All))
			for _, approval := range label.All {
				// Gerrit lists every eligible reviewer; a zero value
				// means no vote was cast.
				if approval.Value == 0 {
					continue
				}
				votes = append(votes, ghp.Vote{Reviewer: approvalName(approval), Value: approval.Value})
			}
			record.Labels[name] = votes
		}
	}

	for _, msg := range info.Messages {
		date, err := parseTime(msg.Date)
		if err != nil {
			return nil, fmt.Errorf("change %d message: %w", info.Number, err)
		}
		record.Messages = append(record.Messages, ghp.Message{
			Author: ghp.Account{Name: accountName(msg.Author), Email: msg.Author.Email},
			Date:   date,
			Body:   msg.Message,
		})
	}

	record.Comments, err = convertComments(info.Number, comments)
	if err != nil {
		return nil, err
	}

	record.Files = convertFiles(files)
	return record, nil
}

// convertComments flattens the per-file comment map into a single ordered
// sequence. Source order within a file is preserved; files are visited in
// sorted order so the output is deterministic.
func convertComments(number int, comments map[string][]commentInfo) ([]ghp.Comment, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	paths := make([]string, 0, len(comments))
	for path := range comments {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out []ghp.Comment
	for _, path := range paths {
		for _, c := range comments[path] {
			written, err := parseTime(c.Updated)
			if err != nil {
				return nil, fmt.Errorf("change %d comment on %s: %w", number, path, err)
			}
			out = append(out, ghp.Comment{
				ID:        c.ID,
				File:      path,
				Line:      c.Line,
				Author:    ghp.Account{Name: accountName(c.Author), Email: c.Author.Email},
				Written:   written,
				Body:      c.Message,
				InReplyTo: c.InReplyTo,
			})
		}
	}
	return out, nil
}

// convertFiles maps the files endpoint response. Gerrit omits the status
// field for plain modifications.
func convertFiles(files map[string]fileInfo) []ghp.FileChange {
	if len(files) == 0 {
		return nil
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	out := make([]ghp.FileChange, 0, len(paths))
	for _, path := range paths {
		info := files[path]
		status := info.Status
		if status == "" {
			status = "M"
		}
		out = append(out, ghp.FileChange{
			Path:          path,
			Status:        status,
			LinesInserted: info.LinesInserted,
			LinesDeleted:  info.LinesDeleted,
		})
	}
	return out
}

// accountName resolves a display name, falling back the way Gerrit's own
// UI does for accounts with no name set.
func accountName(a accountInfo) string {
	if a.Name != "" {
		return a.Name
	}
	if a.Email != "" {
		return a.Email
	}
	return "Unknown"
}

func approvalName(a approvalInfo) string {
	if a.Name != "" {
		return a.Name
	}
	if a.Email != "" {
		return a.Email
	}
	return "Unknown"
}
