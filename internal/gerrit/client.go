package gerrit

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ghp-go/internal/ghp"
)

// xssiPrefix is prepended by Gerrit to every JSON response to defeat
// cross-site script inclusion. It must be stripped before parsing.
const xssiPrefix = ")]}'"

const (
	defaultTimeout     = 30 * time.Second
	defaultRequestRate = 5.0 // requests per second
)

// Options configures a Client.
type Options struct {
	Username string
	Password string
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Timeout bounds each HTTP request; expiry maps to TransportError.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls proactively, on top of
	// honoring the server's 429 responses.
	RequestsPerSecond float64
}

// Client talks to a Gerrit server's REST API and implements
// ghp.ChangeSource. Authenticated requests use HTTP basic auth against the
// /a/ endpoint prefix; anonymous requests go unprefixed.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     ghp.Logger
}

var _ ghp.ChangeSource = (*Client)(nil)

// NewClient creates a Gerrit REST client for the server at baseURL.
func NewClient(baseURL string, opts Options, logger ghp.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestRate
	}

	transport := http.DefaultTransport
	if opts.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:  logger,
	}
}

// authenticated reports whether requests carry credentials.
func (c *Client) authenticated() bool {
	return c.username != "" && c.password != ""
}

// endpoint builds the request URL, adding the /a/ authenticated prefix
// when credentials are configured.
func (c *Client) endpoint(path string, query url.Values) string {
	prefix := ""
	if c.authenticated() {
		prefix = "/a"
	}
	u := c.baseURL + prefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get performs one GET request and returns the raw body with the XSSI
// prefix stripped. Failures are mapped onto the pipeline error taxonomy.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	if c.authenticated() {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ghp.TransportError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ghp.TransportError{Op: "reading response for " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return bytes.TrimPrefix(body, []byte(xssiPrefix)), nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ghp.AuthError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ghp.NotFoundError{What: path}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ghp.RateLimitedError{RetryAfter: retryAfter(resp)}
	default:
		return nil, &ghp.TransportError{
			Op:  "GET " + path,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
}

// getJSON performs a GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response for %s: %w", path, err)
	}
	return nil
}

// retryAfter parses the Retry-After header; zero when absent or malformed.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// listOptions are the o= parameters requested on the change list endpoint.
// Together they make a single list call carry everything except inline
// comments, per-revision files, and the patch itself.
var listOptions = []string{
	"CURRENT_REVISION",
	"CURRENT_COMMIT",
	"DETAILED_ACCOUNTS",
	"MESSAGES",
	"DETAILED_LABELS",
}

// FetchPage lists one page of changes matching query, enriching each with
// its inline comments and changed files. The token is the page offset;
// Gerrit's _more_changes flag on the last result drives continuation.
func (c *Client) FetchPage(ctx context.Context, query string, token ghp.PageToken, pageSize int) (*ghp.Page, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("n", strconv.Itoa(pageSize))
	if token > 0 {
		params.Set("S", strconv.Itoa(int(token)))
	}
	for _, o := range listOptions {
		params.Add("o", o)
	}

	var infos []changeInfo
	if err := c.getJSON(ctx, "/changes/", params, &infos); err != nil {
		return nil, err
	}

	page := &ghp.Page{}
	for i := range infos {
		record, err := c.hydrate(ctx, &infos[i])
		if err != nil {
			var notFound *ghp.NotFoundError
			if errors.As(err, &notFound) {
				// Vanished between list and detail fetch; the next run
				// will not see it either.
				c.logger.Warn("change disappeared during fetch", "change", infos[i].Number)
				continue
			}
			return nil, err
		}
		page.Changes = append(page.Changes, record)
	}

	if len(infos) > 0 && infos[len(infos)-1].MoreChanges {
		next := token + ghp.PageToken(len(infos))
		page.Next = &next
	}
	return page, nil
}

// hydrate converts one listed change and pulls its comments and files.
func (c *Client) hydrate(ctx context.Context, info *changeInfo) (*ghp.ChangeRecord, error) {
	var comments map[string][]commentInfo
	path := fmt.Sprintf("/changes/%d/comments", info.Number)
	if err := c.getJSON(ctx, path, nil, &comments); err != nil {
		return nil, err
	}

	var files map[string]fileInfo
	if info.CurrentRevision != "" {
		path = fmt.Sprintf("/changes/%d/revisions/%s/files/", info.Number, url.PathEscape(info.CurrentRevision))
		if err := c.getJSON(ctx, path, nil, &files); err != nil {
			return nil, err
		}
	}

	return convertChange(info, comments, files)
}

// FetchPatch returns the decoded patch for one revision of a change.
// Gerrit serves patches base64-encoded.
func (c *Client) FetchPatch(ctx context.Context, changeNumber int, revision string) ([]byte, error) {
	path := fmt.Sprintf("/changes/%d/revisions/%s/patch", changeNumber, url.PathEscape(revision))
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("decoding patch for change %d: %w", changeNumber, err)
	}
	return decoded, nil
}
