package testutil

import (
	"fmt"
	"time"

	"ghp-go/internal/ghp"
)

// NewChange builds a merged change record with deterministic fields
// derived from number. Tests mutate the returned record as needed.
func NewChange(number int, subject string) *ghp.ChangeRecord {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(number) * time.Minute)
	return &ghp.ChangeRecord{
		ID:              fmt.Sprintf("myproject~main~I%040d", number),
		Number:          number,
		Project:         "myproject",
		Branch:          "main",
		Status:          ghp.StatusMerged,
		Owner:           ghp.Account{Name: "Jane Developer", Email: "jane@example.com"},
		Subject:         subject,
		Created:         created,
		Updated:         created.Add(time.Hour),
		CurrentRevision: fmt.Sprintf("rev%d", number),
		CommitMessage:   subject + "\n\nChange-Id: I" + fmt.Sprintf("%040d", number) + "\n",
		CommitAuthor:    "Jane Developer",
	}
}
