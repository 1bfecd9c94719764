package render

import (
	"testing"
	"time"

	"ghp-go/internal/ghp"
)

func comment(id, file string, line int, written time.Time, inReplyTo string) ghp.Comment {
	return ghp.Comment{
		ID:        id,
		File:      file,
		Line:      line,
		Author:    ghp.Account{Name: "Bob Reviewer"},
		Written:   written,
		Body:      "comment " + id,
		InReplyTo: inReplyTo,
	}
}

func TestThreadComments_empty(t *testing.T) {
	if got := ThreadComments(nil); got != nil {
		t.Errorf("ThreadComments(nil) = %v, want nil", got)
	}
}

func TestThreadComments_nestsReplies(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	comments := []ghp.Comment{
		comment("c1", "main.go", 10, base, ""),
		comment("c2", "main.go", 10, base.Add(time.Minute), "c1"),
		comment("c3", "main.go", 10, base.Add(2*time.Minute), "c2"),
	}

	files := ThreadComments(comments)
	if len(files) != 1 || files[0].File != "main.go" {
		t.Fatalf("files = %+v, want single main.go entry", files)
	}

	threads := files[0].Threads
	if len(threads) != 1 {
		t.Fatalf("top-level threads = %d, want 1", len(threads))
	}
	root := threads[0]
	if root.Comment.ID != "c1" || len(root.Replies) != 1 {
		t.Fatalf("root = %s with %d replies, want c1 with 1", root.Comment.ID, len(root.Replies))
	}
	reply := root.Replies[0]
	if reply.Comment.ID != "c2" || len(reply.Replies) != 1 || reply.Replies[0].Comment.ID != "c3" {
		t.Errorf("nesting broken: %s -> %v", reply.Comment.ID, reply.Replies)
	}
}

func TestThreadComments_orphanReplyIsPromoted(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	comments := []ghp.Comment{
		comment("c1", "main.go", 10, base, ""),
		comment("c9", "main.go", 20, base.Add(time.Minute), "gone"),
	}

	files := ThreadComments(comments)
	if len(files) != 1 {
		t.Fatalf("files = %d, want 1", len(files))
	}
	threads := files[0].Threads
	if len(threads) != 2 {
		t.Fatalf("top-level threads = %d, want 2 (orphan promoted)", len(threads))
	}

	var orphan *Thread
	for _, th := range threads {
		if th.Comment.ID == "c9" {
			orphan = th
		}
	}
	if orphan == nil {
		t.Fatal("orphan reply not present at top level")
	}
	if !orphan.Broken {
		t.Error("orphan reply not marked broken")
	}
	if threads[0].Broken {
		t.Error("well-formed thread marked broken")
	}
}

func TestThreadComments_ordering(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	comments := []ghp.Comment{
		comment("c3", "b.go", 5, base.Add(time.Hour), ""),
		comment("c1", "a.go", 20, base, ""),
		comment("c2", "a.go", 10, base.Add(time.Minute), ""),
		// Same line as c2, earlier timestamp: timestamp breaks the tie.
		comment("c4", "a.go", 10, base, ""),
	}

	files := ThreadComments(comments)
	if len(files) != 2 || files[0].File != "a.go" || files[1].File != "b.go" {
		t.Fatalf("file order = %+v, want a.go then b.go", files)
	}

	var ids []string
	for _, th := range files[0].Threads {
		ids = append(ids, th.Comment.ID)
	}
	want := []string{"c4", "c2", "c1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("thread order = %v, want %v", ids, want)
		}
	}
}

func TestThreadComments_replyOrderByTimestamp(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	comments := []ghp.Comment{
		comment("root", "main.go", 1, base, ""),
		comment("late", "main.go", 1, base.Add(2*time.Minute), "root"),
		comment("early", "main.go", 1, base.Add(time.Minute), "root"),
	}

	files := ThreadComments(comments)
	replies := files[0].Threads[0].Replies
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want 2", len(replies))
	}
	if replies[0].Comment.ID != "early" || replies[1].Comment.ID != "late" {
		t.Errorf("reply order = %s, %s; want early, late", replies[0].Comment.ID, replies[1].Comment.ID)
	}
}
