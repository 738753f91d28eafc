package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one prefetched URL.
type Result struct {
	Data []byte
	Err  error
}

// Prefetch fetches the distinct urls with at most limit requests in flight.
// Failures are reported per URL and do not stop the other fetches.
func Prefetch(ctx context.Context, f Fetcher, urls []string, limit int) map[string]Result {
	out := make(map[string]Result, len(urls))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, url := range urls {
		mu.Lock()
		_, dup := out[url]
		if !dup {
			out[url] = Result{}
		}
		mu.Unlock()
		if dup {
			continue
		}
		g.Go(func() error {
			data, err := f.Fetch(ctx, url)
			mu.Lock()
			out[url] = Result{Data: data, Err: err}
			mu.Unlock()
			return nil
		})
	}
	// Failures are kept per URL; the group itself never fails.
	_ = g.Wait()
	return out
}
