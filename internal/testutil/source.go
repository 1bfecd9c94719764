package testutil

import (
	"context"
	"fmt"
	"sync"

	"ghp-go/internal/ghp"
)

// FakeChangeSource serves scripted pages and patches. Errors can be queued
// per call to exercise retry paths: each FetchPage call consumes one queued
// error before any page is served.
type FakeChangeSource struct {
	mu sync.Mutex

	// Pages are served in order of token: token N serves Pages[N..] as a
	// window of the configured page size.
	Changes []*ghp.ChangeRecord
	// Patches maps change number to patch bytes. Missing numbers return
	// NotFoundError.
	Patches map[int][]byte

	// PageErrs are consumed one per FetchPage call before serving.
	PageErrs []error
	// PatchErrs are consumed one per FetchPatch call before serving.
	PatchErrs []error

	pageCalls  int
	patchCalls int
}

var _ ghp.ChangeSource = (*FakeChangeSource)(nil)

func (f *FakeChangeSource) FetchPage(ctx context.Context, query string, token ghp.PageToken, pageSize int) (*ghp.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pageCalls++
	if len(f.PageErrs) > 0 {
		err := f.PageErrs[0]
		f.PageErrs = f.PageErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	start := int(token)
	if start >= len(f.Changes) {
		return &ghp.Page{}, nil
	}
	end := start + pageSize
	if end > len(f.Changes) {
		end = len(f.Changes)
	}

	page := &ghp.Page{Changes: f.Changes[start:end]}
	if end < len(f.Changes) {
		next := ghp.PageToken(end)
		page.Next = &next
	}
	return page, nil
}

func (f *FakeChangeSource) FetchPatch(ctx context.Context, changeNumber int, revision string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.patchCalls++
	if len(f.PatchErrs) > 0 {
		err := f.PatchErrs[0]
		f.PatchErrs = f.PatchErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	patch, ok := f.Patches[changeNumber]
	if !ok {
		return nil, &ghp.NotFoundError{What: fmt.Sprintf("patch for change %d", changeNumber)}
	}
	return patch, nil
}

// PageCalls returns how many times FetchPage was invoked.
func (f *FakeChangeSource) PageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls
}

// PatchCalls returns how many times FetchPatch was invoked.
func (f *FakeChangeSource) PatchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patchCalls
}
