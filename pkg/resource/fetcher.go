package resource

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	stdnet "lazyview/std/net"
)

// Fetcher retrieves resources by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (body []byte, contentType string, err error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, uri string) ([]byte, string, error)

func (f FetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	return f(ctx, uri)
}

// DefaultFetcher fetches data: URIs, HTTP/HTTPS URLs and local files,
// resolving relative URIs against a base. The base is either a network URL
// or a filesystem path of the page.
type DefaultFetcher struct {
	baseURL string
	baseDir string
}

// NewFetcher creates a DefaultFetcher. A base starting with http(s):// is
// used for URL resolution; anything else is treated as the page's file path
// and relative URIs resolve against its directory.
func NewFetcher(base string) *DefaultFetcher {
	f := &DefaultFetcher{}
	switch {
	case stdnet.IsNetworkURL(base):
		f.baseURL = base
	case strings.HasPrefix(base, "file://"):
		f.baseDir = filepath.Dir(strings.TrimPrefix(base, "file://"))
	case base != "":
		f.baseDir = filepath.Dir(base)
	}
	return f
}

// Resolve returns the absolute form of uri.
func (f *DefaultFetcher) Resolve(uri string) string {
	uri = strings.TrimSpace(uri)
	switch {
	case IsDataURI(uri), stdnet.IsNetworkURL(uri):
		return uri
	case f.baseURL != "":
		return stdnet.ResolveURL(f.baseURL, uri)
	case strings.HasPrefix(uri, "file://"):
		return uri
	case f.baseDir != "" && !filepath.IsAbs(uri):
		return filepath.Join(f.baseDir, filepath.FromSlash(uri))
	}
	return uri
}

// Fetch retrieves the resource at the given URI.
func (f *DefaultFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	resolved := f.Resolve(uri)
	switch {
	case resolved == "":
		return nil, "", fmt.Errorf("empty URI")
	case IsDataURI(resolved):
		return DecodeDataURI(resolved)
	case stdnet.IsNetworkURL(resolved):
		return stdnet.Fetch(ctx, resolved)
	}
	path := resolved
	if strings.HasPrefix(path, "file://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, "", fmt.Errorf("parsing file URI: %w", err)
		}
		path = u.Path
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	return body, mime.TypeByExtension(filepath.Ext(path)), nil
}
