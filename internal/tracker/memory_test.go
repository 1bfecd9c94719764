package tracker

import (
	"testing"
	"time"

	"ghp-go/internal/ghp"
)

func TestMemoryTracker_behavesLikeSQLite(t *testing.T) {
	tracker := NewMemoryTracker()
	entry := entryFixture("myproject~main~Iaaa", 1, "fp-1")

	if err := tracker.Record(entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	archived, err := tracker.IsArchived(entry.ChangeID, "fp-1")
	if err != nil || !archived {
		t.Errorf("IsArchived(same) = %v, %v; want true", archived, err)
	}
	archived, err = tracker.IsArchived(entry.ChangeID, "fp-2")
	if err != nil || archived {
		t.Errorf("IsArchived(changed) = %v, %v; want false", archived, err)
	}

	got, err := tracker.Lookup(entry.ChangeID)
	if err != nil || got == nil || got.Fingerprint != "fp-1" {
		t.Errorf("Lookup() = %+v, %v", got, err)
	}
}

func TestMemoryTracker_entriesAreIsolated(t *testing.T) {
	tracker := NewMemoryTracker()
	entry := entryFixture("myproject~main~Iaaa", 1, "fp-1")
	if err := tracker.Record(entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Mutating the caller's copy must not leak into tracker state.
	entry.Fingerprint = "mutated"

	got, err := tracker.Lookup("myproject~main~Iaaa")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Fingerprint != "fp-1" {
		t.Errorf("fingerprint = %q, tracker shares memory with caller", got.Fingerprint)
	}

	// Same the other way around.
	got.Subject = "scribbled"
	again, _ := tracker.Lookup("myproject~main~Iaaa")
	if again.Subject != "A change" {
		t.Errorf("subject = %q, returned entry aliases tracker state", again.Subject)
	}
}

func TestMemoryTracker_allEntriesSorted(t *testing.T) {
	tracker := NewMemoryTracker()
	for _, e := range []*ghp.ArchivedEntry{
		entryFixture("myproject~main~Ic", 3, "fp-3"),
		entryFixture("myproject~main~Ia", 1, "fp-1"),
		entryFixture("myproject~main~Ib", 2, "fp-2"),
	} {
		if err := tracker.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := tracker.AllEntries()
	if err != nil {
		t.Fatalf("AllEntries() error = %v", err)
	}
	for i, want := range []int{1, 2, 3} {
		if entries[i].Number != want {
			t.Fatalf("entry %d has number %d, want %d", i, entries[i].Number, want)
		}
	}
}

func TestMemoryTracker_runsNewestFirstWithLimit(t *testing.T) {
	tracker := NewMemoryTracker()
	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		run := &ghp.SyncRun{
			ID:        time.Duration(i).String(),
			StartedAt: started.Add(time.Duration(i) * time.Hour),
			Phase:     ghp.PhaseDone,
		}
		if err := tracker.RecordRun(run); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := tracker.Runs(2)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("runs not ordered newest first")
	}
}
