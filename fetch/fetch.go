// Package fetch retrieves the remote documents and images a render needs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default limits of an HTTPFetcher.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 32 << 20
)

var (
	// ErrStatus reports a response outside the 2xx range.
	ErrStatus = errors.New("fetch: unexpected status")
	// ErrTooLarge reports a body over the size limit.
	ErrTooLarge = errors.New("fetch: response too large")
)

// Fetcher returns the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls fn.
func (fn FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return fn(ctx, url) }

// HTTPFetcher fetches over HTTP with a per-request timeout and a body size
// cap. The zero value uses http.DefaultClient and the default limits.
type HTTPFetcher struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Fetch issues a GET for url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: %s: %s", ErrStatus, url, resp.Status)
	}
	max := f.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if resp.ContentLength > max {
		return nil, fmt.Errorf("%w: %s: %d bytes", ErrTooLarge, url, resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: reading %s: %w", url, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: %s: over %d bytes", ErrTooLarge, url, max)
	}
	return data, nil
}
