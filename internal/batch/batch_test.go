package batch

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsift/chatsift/internal/extractor"
	"github.com/chatsift/chatsift/internal/schema"
)

func makeItems(n int) []extractor.Item {
	items := make([]extractor.Item, n)
	for i := range items {
		items[i] = extractor.Item{ChatID: int64(i + 1), Corpus: fmt.Sprintf("corpus %d", i+1)}
	}
	return items
}

func TestRun_OrderPreservedWithMixedOutcomes(t *testing.T) {
	const n = 40
	items := makeItems(n)

	rng := rand.New(rand.NewSource(1))
	failing := make(map[int64]bool)
	for _, item := range items {
		if rng.Intn(2) == 0 {
			failing[item.ChatID] = true
		}
	}

	fn := func(_ context.Context, item extractor.Item) extractor.Result {
		time.Sleep(time.Duration(rng.Intn(5)) * time.Millisecond)
		if failing[item.ChatID] {
			return extractor.Result{Item: item, Failure: &extractor.Failure{
				Kind:    extractor.KindTransport,
				Message: "simulated outage",
			}}
		}
		return extractor.Result{Item: item, Record: schema.Record{"chat_id": item.ChatID}}
	}

	results := Run(context.Background(), items, 8, fn)
	require.Len(t, results, n)
	for i, res := range results {
		assert.Equal(t, items[i].ChatID, res.Item.ChatID, "result %d out of order", i)
		if failing[res.Item.ChatID] {
			require.False(t, res.OK())
			assert.Equal(t, extractor.KindTransport, res.Failure.Kind)
		} else {
			require.True(t, res.OK())
		}
	}
}

func TestRun_ConcurrencyCeiling(t *testing.T) {
	const limit = 3
	const n = 20

	var inflight, peak atomic.Int64
	fn := func(_ context.Context, item extractor.Item) extractor.Result {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inflight.Add(-1)
		return extractor.Result{Item: item, Record: schema.Record{}}
	}

	results := Run(context.Background(), makeItems(n), limit, fn)
	require.Len(t, results, n)
	assert.LessOrEqual(t, peak.Load(), int64(limit), "in-flight extractions exceeded the gate")
	assert.Equal(t, int64(limit), peak.Load(), "gate should actually be saturated")
}

func TestRun_CancelMarksUnstartedItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once atomic.Bool
	fn := func(ctx context.Context, item extractor.Item) extractor.Result {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return extractor.Result{Item: item, Failure: &extractor.Failure{
			Kind:    extractor.KindTransport,
			Message: ctx.Err().Error(),
		}}
	}

	go func() {
		<-started
		cancel()
	}()

	results := Run(ctx, makeItems(10), 1, fn)
	require.Len(t, results, 10)
	for i, res := range results {
		require.False(t, res.OK(), "item %d should not have succeeded", i)
		assert.Equal(t, extractor.KindTransport, res.Failure.Kind)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	results := Run(context.Background(), nil, 4, func(_ context.Context, item extractor.Item) extractor.Result {
		t.Fatal("should not be called")
		return extractor.Result{}
	})
	assert.Empty(t, results)
}
