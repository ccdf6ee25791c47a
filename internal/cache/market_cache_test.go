package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinCortex/internal/dataflows"
)

type countingSource struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (s *countingSource) Snapshot(ctx context.Context, symbol string, days int) (*dataflows.MarketSnapshot, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return &dataflows.MarketSnapshot{Symbol: symbol, Source: "fake"}, nil
}

func TestMarketDataCacheHitAndExpiry(t *testing.T) {
	src := &countingSource{}
	c := NewMarketDataCache(src, time.Minute, nil)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := c.Snapshot(ctx, "MSFT", 60)
	require.NoError(t, err)
	second, err := c.Snapshot(ctx, "MSFT", 60)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())

	_, err = c.Snapshot(ctx, "MSFT", 30)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "days is part of the key")

	now = now.Add(2 * time.Minute)
	_, err = c.Snapshot(ctx, "MSFT", 60)
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestMarketDataCacheDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("upstream down")
	src := &countingSource{err: boom}
	c := NewMarketDataCache(src, time.Minute, nil)

	for range 2 {
		_, err := c.Snapshot(context.Background(), "AAPL", 60)
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Zero(t, c.Len())
}

func TestMarketDataCacheSharesConcurrentFetch(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	c := NewMarketDataCache(src, time.Minute, nil)

	var wg sync.WaitGroup
	results := make([]*dataflows.MarketSnapshot, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.Snapshot(context.Background(), "NVDA", 60)
			assert.NoError(t, err)
			results[i] = snap
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "NVDA", r.Symbol)
	}
	assert.LessOrEqual(t, src.calls.Load(), int32(2))
}

func TestMarketDataCacheCallerCancel(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	c := NewMarketDataCache(src, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Snapshot(ctx, "TSLA", 60)
	require.ErrorIs(t, err, context.Canceled)

	close(src.release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	c.Clear()
	assert.Zero(t, c.Len())
}
