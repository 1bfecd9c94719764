package ghp

import "context"

// PageToken is an opaque continuation token for change listing. Tokens are
// monotonic: resuming iteration from a previously returned token never
// re-yields changes from earlier pages.
type PageToken int

// FirstPage is the token for the start of iteration.
const FirstPage PageToken = 0

// Page is one page of change records. Next is nil when the remote has no
// further results.
type Page struct {
	Changes []*ChangeRecord
	Next    *PageToken
}

// ChangeSource is a paginated, queryable provider of change records.
// The production implementation talks to Gerrit's REST API; tests use a
// scripted in-memory source.
type ChangeSource interface {
	// FetchPage returns one page of changes matching query, starting at
	// token. Implementations map remote failures onto the error taxonomy
	// in errors.go (TransportError, AuthError, RateLimitedError).
	FetchPage(ctx context.Context, query string, token PageToken, pageSize int) (*Page, error)

	// FetchPatch returns the raw patch for one revision of a change.
	// Patch bodies are fetched lazily, only for changes that are not
	// already archived. Returns NotFoundError if the change vanished
	// between listing and fetch.
	FetchPatch(ctx context.Context, changeNumber int, revision string) ([]byte, error)
}
