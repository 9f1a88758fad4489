package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sellerpilot/internal/types"
)

// connectionTestConcurrency caps how many stores are probed at once so a
// large config file does not burst the upstream API.
const connectionTestConcurrency = 4

// ConnTestFunc probes a single store's marketplace credentials.
type ConnTestFunc func(ctx context.Context, s types.StoreConfig) error

// ConnectionResult is the outcome of probing one store.
type ConnectionResult struct {
	Store string `json:"store"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TestAllConnections probes every configured store concurrently and returns
// one result per store, sorted by name. A failing store never fails the
// batch; its error is reported in its result.
func (f *FileStore) TestAllConnections(ctx context.Context, test ConnTestFunc) []ConnectionResult {
	stores := f.List()
	results := make([]ConnectionResult, len(stores))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(connectionTestConcurrency)
	for i, s := range stores {
		i, s := i, s
		g.Go(func() error {
			res := ConnectionResult{Store: s.Name}
			if err := test(ctx, s); err != nil {
				res.Error = err.Error()
			} else {
				res.OK = true
			}
			results[i] = res
			return nil
		})
	}
	// Goroutines always return nil; Wait only serves as the join point.
	_ = g.Wait()
	return results
}
