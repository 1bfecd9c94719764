package render

import (
	"strings"
	"testing"
	"time"

	"ghp-go/internal/ghp"
)

func testChange() *ghp.ChangeRecord {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &ghp.ChangeRecord{
		ID:              "myproject~main~Iabc123",
		Number:          42,
		Project:         "myproject",
		Branch:          "main",
		Status:          ghp.StatusMerged,
		Owner:           ghp.Account{Name: "Jane Developer", Email: "jane@example.com"},
		Subject:         "Add input validation",
		Created:         created,
		Updated:         created.Add(time.Hour),
		CurrentRevision: "deadbeef",
		Labels: map[string][]ghp.Vote{
			"Code-Review": {{Reviewer: "Bob Reviewer", Value: 2}},
		},
	}
}

func TestFingerprint_isStable(t *testing.T) {
	a := Fingerprint(testChange())
	b := Fingerprint(testChange())
	if a != b {
		t.Errorf("same change produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprint_changesWithContent(t *testing.T) {
	base := Fingerprint(testChange())

	mutations := map[string]func(*ghp.ChangeRecord){
		"subject": func(c *ghp.ChangeRecord) { c.Subject = "Different subject" },
		"updated": func(c *ghp.ChangeRecord) { c.Updated = c.Updated.Add(time.Second) },
		"status":  func(c *ghp.ChangeRecord) { c.Status = ghp.StatusAbandoned },
		"vote": func(c *ghp.ChangeRecord) {
			c.Labels["Code-Review"] = append(c.Labels["Code-Review"], ghp.Vote{Reviewer: "Eve", Value: -1})
		},
		"message": func(c *ghp.ChangeRecord) {
			c.Messages = append(c.Messages, ghp.Message{Author: ghp.Account{Name: "Bob"}, Body: "LGTM"})
		},
		"revision": func(c *ghp.ChangeRecord) { c.CurrentRevision = "cafebabe" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			change := testChange()
			mutate(change)
			if Fingerprint(change) == base {
				t.Error("mutated change has unchanged fingerprint")
			}
		})
	}
}

func TestCommentAnchor(t *testing.T) {
	written := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	c := ghp.Comment{
		File:    "src/main.go",
		Line:    10,
		Author:  ghp.Account{Name: "Bob Reviewer"},
		Written: written,
	}

	anchor := commentAnchor(c)
	if !strings.HasPrefix(anchor, "c-") || len(anchor) != 14 {
		t.Errorf("anchor = %q, want c- prefix and 12 hex chars", anchor)
	}
	if commentAnchor(c) != anchor {
		t.Error("anchor is not stable across calls")
	}

	other := c
	other.Line = 11
	if commentAnchor(other) == anchor {
		t.Error("different comments share an anchor")
	}
}
