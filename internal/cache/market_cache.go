package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dyike/FinCortex/internal/dataflows"
	"github.com/dyike/FinCortex/internal/logger"
)

const DefaultTTL = 5 * time.Minute

// SnapshotSource loads market snapshots, usually a dataflows.MarketRouter.
type SnapshotSource interface {
	Snapshot(ctx context.Context, symbol string, days int) (*dataflows.MarketSnapshot, error)
}

// MarketDataCache keeps snapshots in memory for a short TTL so concurrent or
// repeated analyses of one ticker share a single upstream fetch. Failures
// are never cached.
type MarketDataCache struct {
	source SnapshotSource
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu          sync.RWMutex
	memoryCache map[string]cachedData
	group       singleflight.Group
}

type cachedData struct {
	snapshot  *dataflows.MarketSnapshot
	timestamp time.Time
}

func NewMarketDataCache(source SnapshotSource, ttl time.Duration, log *zap.Logger) *MarketDataCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MarketDataCache{
		source:      source,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger.OrNop(log),
		memoryCache: make(map[string]cachedData),
	}
}

func (c *MarketDataCache) Snapshot(ctx context.Context, symbol string, days int) (*dataflows.MarketSnapshot, error) {
	key := fmt.Sprintf("%s-%d", symbol, days)

	if snap, ok := c.get(key); ok {
		c.logger.Debug("market cache hit", zap.String("symbol", symbol), zap.Int("days", days))
		return snap, nil
	}

	// The shared fetch is detached from any one caller so a cancelled
	// caller does not fail the others waiting on it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		snap, err := c.source.Snapshot(fetchCtx, symbol, days)
		if err != nil {
			return nil, err
		}
		c.set(key, snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*dataflows.MarketSnapshot), nil
	}
}

func (c *MarketDataCache) get(key string) (*dataflows.MarketSnapshot, bool) {
	c.mu.RLock()
	cached, ok := c.memoryCache[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(cached.timestamp) > c.ttl {
		c.mu.Lock()
		delete(c.memoryCache, key)
		c.mu.Unlock()
		return nil, false
	}
	return cached.snapshot, true
}

func (c *MarketDataCache) set(key string, snap *dataflows.MarketSnapshot) {
	c.mu.Lock()
	c.memoryCache[key] = cachedData{snapshot: snap, timestamp: c.now()}
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired ones included.
func (c *MarketDataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memoryCache)
}

func (c *MarketDataCache) Clear() {
	c.mu.Lock()
	c.memoryCache = make(map[string]cachedData)
	c.mu.Unlock()
}
