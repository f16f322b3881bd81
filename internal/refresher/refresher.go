// Package refresher runs the optional background refresh loop: it walks the
// registered feeds on an interval so caches stay warm and newly seen
// incidents get published without waiting for an inbound request.
package refresher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/feedcache"
	"github.com/emberwatch/alert-feed-service/internal/observability"
	"github.com/emberwatch/alert-feed-service/internal/store"
)

// FeedGetter serves enriched feeds by key.
type FeedGetter interface {
	Keys() []string
	Get(ctx context.Context, feedKey string) (*feedcache.Result, error)
}

// Publisher pushes newly seen alerts to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, records []domain.AlertRecord) error
}

// Refresher drives the refresh loop.
type Refresher struct {
	feeds     FeedGetter
	publisher Publisher
	kv        store.KV
	clock     clockwork.Clock
	interval  time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
	ready     atomic.Bool
}

// New creates a refresher. publisher may be nil, in which case the loop
// only keeps caches warm.
func New(feeds FeedGetter, publisher Publisher, kv store.KV, clock clockwork.Clock, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Refresher {
	return &Refresher{
		feeds:     feeds,
		publisher: publisher,
		kv:        kv,
		clock:     clock,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
	}
}

// CheckReadiness returns nil once at least one refresh cycle has completed,
// or an error describing why the service is not yet ready.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// Run executes the refresh loop until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval, "feeds", r.feeds.Keys())
	r.metrics.RefreshRunning.Set(1)
	defer r.metrics.RefreshRunning.Set(0)

	// Exponential backoff after a failed cycle: start at 200ms, double each
	// retry, cap at 5s. Keeps retry storms short during upstream outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if err := r.refreshAll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("refresh cycle failed", "error", err)
			if !r.sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		r.ready.Store(true)

		if !r.sleep(ctx, r.interval) {
			return nil
		}
	}
}

// refreshAll serves every feed once through the cache coordinator. A feed
// whose refresh fails doesn't block the others; the cycle errors only when
// every feed failed.
func (r *Refresher) refreshAll(ctx context.Context) error {
	var lastErr error
	failures := 0

	for _, key := range r.feeds.Keys() {
		res, err := r.feeds.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("feed refresh failed", "feed", key, "error", err)
			failures++
			lastErr = err
			continue
		}
		r.publishNew(ctx, key, res.Records)
	}

	if failures > 0 && failures == len(r.feeds.Keys()) {
		return lastErr
	}
	return nil
}

// publishNew pushes records whose incident id has not been seen before.
// Seen-markers live in the store so restarts don't republish the backlog.
func (r *Refresher) publishNew(ctx context.Context, feedKey string, records []domain.AlertRecord) {
	if r.publisher == nil {
		return
	}

	var fresh []domain.AlertRecord
	for _, rec := range records {
		if rec.IncidentID == "" {
			continue
		}
		marker := "seen-" + rec.IncidentID
		exists, err := r.kv.Exists(ctx, feedKey, marker)
		if err != nil {
			r.logger.Warn("seen-marker lookup failed", "feed", feedKey, "incident", rec.IncidentID, "error", err)
			continue
		}
		if exists {
			continue
		}
		fresh = append(fresh, rec)
	}

	if len(fresh) == 0 {
		return
	}

	if err := r.publisher.Publish(ctx, fresh); err != nil {
		// Markers are only written after a successful publish, so these
		// records get retried next cycle.
		r.logger.Error("publish failed", "feed", feedKey, "count", len(fresh), "error", err)
		return
	}
	r.metrics.AlertsPublished.Add(float64(len(fresh)))

	for _, rec := range fresh {
		if err := r.kv.Put(ctx, feedKey, "seen-"+rec.IncidentID, []byte(`{}`)); err != nil {
			r.logger.Warn("seen-marker write failed", "feed", feedKey, "incident", rec.IncidentID, "error", err)
		}
	}
}

func (r *Refresher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := r.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
