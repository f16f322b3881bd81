// Package feedcache is the TTL-based feed cache and fetch coordinator. Per
// feed key it keeps a "latest" snapshot row and a "fetch-tracker" timestamp
// row in the store; freshness is a plain timestamp compare, so concurrent
// callers hitting the stale window may each fetch once. That weak
// coordination is deliberate: the upstream feeds tolerate an occasional
// double fetch far better than they'd tolerate a distributed lock.
package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/observability"
	"github.com/emberwatch/alert-feed-service/internal/store"
)

// Status tags how a serve was satisfied, so callers can surface data age.
type Status string

const (
	StatusFreshFetch    Status = "fresh-fetch"
	StatusCacheHit      Status = "cache-hit"
	StatusStaleFallback Status = "stale-fallback"
)

// Row keys within a feed's namespace. Location keys never collide with
// these: they are uppercased during normalization.
const (
	latestRow  = "latest"
	trackerRow = "fetch-tracker"
)

// ErrNoCachedData reports a fetch failure with nothing cached to fall back
// on. It always travels with the underlying fetch or parse error.
var ErrNoCachedData = errors.New("feedcache: no cached data")

// FetchFunc retrieves one feed's raw payload.
type FetchFunc func(ctx context.Context) ([]byte, error)

// ParseFunc converts a raw payload into alert records.
type ParseFunc func(payload []byte) ([]domain.AlertRecord, error)

// Result is one served feed: the records plus how and when they were
// obtained.
type Result struct {
	Records  []domain.AlertRecord
	CachedAt time.Time
	Status   Status
}

// Coordinator decides, per call, whether to serve cached records or fetch,
// parse, enrich, and re-cache. All cross-request state lives in the store.
type Coordinator struct {
	kv       store.KV
	resolver domain.Resolver
	clock    clockwork.Clock
	throttle time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a coordinator. throttle is the pause between geocoding
// provider calls during enrichment.
func New(kv store.KV, resolver domain.Resolver, clock clockwork.Clock, throttle time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		kv:       kv,
		resolver: resolver,
		clock:    clock,
		throttle: throttle,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetEnrichedFeed returns the feed's records, fetching upstream only when
// the last recorded fetch is at least ttl old. A failed refresh falls back
// to the previous snapshot, however old, without touching the fetch
// tracker, so the next call retries immediately instead of waiting out a
// TTL on failed data.
func (c *Coordinator) GetEnrichedFeed(ctx context.Context, feedKey string, ttl time.Duration, fetchFn FetchFunc, parseFn ParseFunc) (*Result, error) {
	if tracker := c.loadTracker(ctx, feedKey); tracker != nil && c.clock.Now().Sub(tracker.LastFetchAt) < ttl {
		if snap := c.loadSnapshot(ctx, feedKey); snap != nil {
			c.metrics.FeedServes.WithLabelValues(feedKey, string(StatusCacheHit)).Inc()
			return &Result{Records: snap.Records, CachedAt: snap.CachedAt, Status: StatusCacheHit}, nil
		}
		// Tracker says fresh but the snapshot row is gone; treat as stale.
	}

	payload, err := fetchFn(ctx)
	var records []domain.AlertRecord
	if err == nil {
		records, err = parseFn(payload)
	}
	if err != nil {
		if snap := c.loadSnapshot(ctx, feedKey); snap != nil {
			c.logger.Warn("refresh failed, serving stale snapshot",
				"feed", feedKey, "cached_at", snap.CachedAt, "error", err)
			c.metrics.FeedServes.WithLabelValues(feedKey, string(StatusStaleFallback)).Inc()
			return &Result{Records: snap.Records, CachedAt: snap.CachedAt, Status: StatusStaleFallback}, nil
		}
		return nil, errors.Join(ErrNoCachedData, err)
	}

	// Enrichment and the cache writes outlive the caller: geocoding results
	// are worth having even when the originating request gave up waiting.
	bg := context.WithoutCancel(ctx)
	records = domain.EnrichWithCoordinates(bg, records, c.resolver, feedKey, c.throttle, c.logger)

	now := c.clock.Now()
	c.storeSnapshot(bg, feedKey, &domain.FeedSnapshot{FeedKey: feedKey, Records: records, CachedAt: now})
	c.storeTracker(bg, feedKey, &domain.FetchTracker{FeedKey: feedKey, LastFetchAt: now})

	c.metrics.FeedServes.WithLabelValues(feedKey, string(StatusFreshFetch)).Inc()
	return &Result{Records: records, CachedAt: now, Status: StatusFreshFetch}, nil
}

// loadTracker returns the feed's fetch tracker, or nil when absent or
// unreadable. An unreadable tracker just means the next fetch happens now.
func (c *Coordinator) loadTracker(ctx context.Context, feedKey string) *domain.FetchTracker {
	data, err := c.kv.Get(ctx, feedKey, trackerRow)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("fetch tracker read failed", "feed", feedKey, "error", err)
		}
		return nil
	}
	var tracker domain.FetchTracker
	if err := json.Unmarshal(data, &tracker); err != nil {
		c.logger.Warn("corrupt fetch tracker", "feed", feedKey, "error", err)
		return nil
	}
	return &tracker
}

// loadSnapshot returns the feed's latest snapshot, or nil when absent or
// unreadable.
func (c *Coordinator) loadSnapshot(ctx context.Context, feedKey string) *domain.FeedSnapshot {
	data, err := c.kv.Get(ctx, feedKey, latestRow)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("snapshot read failed", "feed", feedKey, "error", err)
		}
		return nil
	}
	var snap domain.FeedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("corrupt feed snapshot", "feed", feedKey, "error", err)
		return nil
	}
	return &snap
}

func (c *Coordinator) storeSnapshot(ctx context.Context, feedKey string, snap *domain.FeedSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("marshal feed snapshot", "feed", feedKey, "error", err)
		return
	}
	if err := c.kv.Put(ctx, feedKey, latestRow, data); err != nil {
		// The fetched records are still served this cycle; only the cache
		// misses out.
		c.logger.Warn("snapshot write failed", "feed", feedKey, "error", err)
	}
}

func (c *Coordinator) storeTracker(ctx context.Context, feedKey string, tracker *domain.FetchTracker) {
	data, err := json.Marshal(tracker)
	if err != nil {
		c.logger.Error("marshal fetch tracker", "feed", feedKey, "error", err)
		return
	}
	if err := c.kv.Put(ctx, feedKey, trackerRow, data); err != nil {
		c.logger.Warn("fetch tracker write failed", "feed", feedKey, "error", err)
	}
}
