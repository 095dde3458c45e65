package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "lazyview/1.0 (compatible; Go)"

// DefaultMaxBody caps a single response body.
const DefaultMaxBody = 32 << 20

// ErrTooLarge is returned when a response body exceeds the client's limit.
var ErrTooLarge = errors.New("response body too large")

// Client fetches page resources over HTTP/HTTPS.
type Client struct {
	HTTP    *http.Client
	MaxBody int64
}

// NewClient returns a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}, MaxBody: DefaultMaxBody}
}

// DefaultClient is used by Fetch.
var DefaultClient = NewClient(30 * time.Second)

// Fetch retrieves rawURL with DefaultClient.
func Fetch(ctx context.Context, rawURL string) (body []byte, contentType string, err error) {
	return DefaultClient.Fetch(ctx, rawURL)
}

// Fetch retrieves the content at rawURL and returns the body and its
// content type.
func (c *Client) Fetch(ctx context.Context, rawURL string) (body []byte, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*,text/html;q=0.9,*/*;q=0.8")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	limit := c.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("fetching %s: %w", rawURL, ErrTooLarge)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.Code, e.URL)
}

// ResolveURL resolves ref against base. Unparseable input returns ref.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// IsNetworkURL reports whether s is an http or https URL.
func IsNetworkURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
