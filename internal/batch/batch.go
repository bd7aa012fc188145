// Package batch fans extraction work out under a bounded concurrency gate.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/chatsift/chatsift/internal/extractor"
)

// ExtractFunc performs one extraction. Implementations must be safe for
// concurrent use; the Extractor is.
type ExtractFunc func(ctx context.Context, item extractor.Item) extractor.Result

// Run processes every item with at most limit extractions in flight at
// once. The gate is a counting semaphore, not a batch-then-wait cadence:
// as one item completes the next queued one starts, so a single slow item
// never stalls the rest.
//
// The returned slice holds exactly one result per item, indexed by input
// position regardless of completion order. One item's failure never aborts
// the others. If ctx is cancelled, in-flight extractions are left to wind
// down on their own context and items not yet started are marked as
// transport failures.
func Run(ctx context.Context, items []extractor.Item, limit int64, fn ExtractFunc) []extractor.Result {
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(limit)
	results := make([]extractor.Result, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = extractor.Result{
				Item: item,
				Failure: &extractor.Failure{
					Kind:    extractor.KindTransport,
					Message: "run cancelled before start: " + err.Error(),
				},
			}
			continue
		}
		wg.Add(1)
		go func(i int, item extractor.Item) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = fn(ctx, item)
		}(i, item)
	}

	wg.Wait()
	return results
}
