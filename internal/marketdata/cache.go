package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// CachedSource wraps a Source with a Redis bar cache. Cache failures are
// logged and fall through to the underlying source.
type CachedSource struct {
	inner Source
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewCachedSource wraps inner with Redis-backed caching of FetchBars.
func NewCachedSource(inner Source, rdb *redis.Client, log zerolog.Logger) *CachedSource {
	return &CachedSource{
		inner: inner,
		rdb:   rdb,
		log:   log.With().Str("component", "marketdata_cache").Logger(),
	}
}

func barsKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("bars:%s:%s:%d", symbol, timeframe, limit)
}

// barsTTL scales cache lifetime with the timeframe: short frames go stale
// fast, daily bars barely move.
func barsTTL(timeframe string) time.Duration {
	d, err := TimeframeDuration(timeframe)
	if err != nil {
		return time.Minute
	}
	ttl := d / 4
	if ttl < 30*time.Second {
		ttl = 30 * time.Second
	}
	if ttl > time.Hour {
		ttl = time.Hour
	}
	return ttl
}

func (c *CachedSource) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]series.Bar, error) {
	key := barsKey(symbol, timeframe, limit)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var bars []series.Bar
		if err := json.Unmarshal(raw, &bars); err == nil {
			return bars, nil
		}
		c.log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	bars, err := c.inner.FetchBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(bars); err == nil {
		if err := c.rdb.Set(ctx, key, raw, barsTTL(timeframe)).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return bars, nil
}

// FetchHistory bypasses the cache: backtest pulls are one-off and large.
func (c *CachedSource) FetchHistory(ctx context.Context, symbol, timeframe string, limit int) ([]series.Bar, error) {
	return c.inner.FetchHistory(ctx, symbol, timeframe, limit)
}

func (c *CachedSource) TopSymbolsByVolume(ctx context.Context, n int, quote string) ([]RankedSymbol, error) {
	return c.inner.TopSymbolsByVolume(ctx, n, quote)
}

func (c *CachedSource) FundingRate(ctx context.Context, symbol string) (float64, bool, error) {
	return c.inner.FundingRate(ctx, symbol)
}

func (c *CachedSource) OpenInterest(ctx context.Context, symbol string) ([]float64, error) {
	return c.inner.OpenInterest(ctx, symbol)
}
