// Package geocache is the write-once geocoding cache: each normalized
// location key is resolved through the provider at most once for the
// lifetime of the store. Physical locations don't move, so entries never
// expire and are never rewritten.
package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/observability"
	"github.com/emberwatch/alert-feed-service/internal/store"
)

// entry is the persisted form of one resolved location.
type entry struct {
	Key        string    `json:"key"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	PlaceName  string    `json:"place_name,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Resolver implements domain.Resolver over the persistent store and a
// geocoding provider. Keys are scoped per feed namespace, matching the
// store's coarse-namespace partitioning.
type Resolver struct {
	kv       store.KV
	geocoder domain.Geocoder
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a resolver. A nil geocoder (credential not configured) makes
// every cache miss resolve to nothing rather than erroring.
func New(kv store.KV, geocoder domain.Geocoder, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		kv:       kv,
		geocoder: geocoder,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolve returns cached coordinates for the location, or calls the
// provider exactly once on a miss. Provider failures and zero-result
// answers return a nil location without caching, so a transient failure
// never permanently blocks a location. queried is true whenever the
// provider was reached, successful or not.
func (r *Resolver) Resolve(ctx context.Context, location, feedKey string) (*domain.ResolvedLocation, bool, error) {
	key := domain.LocationKey(location)
	if len(key) < 3 {
		return nil, false, nil
	}

	data, err := r.kv.Get(ctx, feedKey, key)
	switch {
	case err == nil:
		var e entry
		if unmarshalErr := json.Unmarshal(data, &e); unmarshalErr != nil {
			// A corrupt row is unrecoverable by retrying the read; fall
			// through to the provider and overwrite it.
			r.logger.Warn("corrupt geocode cache entry", "key", key, "error", unmarshalErr)
		} else {
			r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			return &domain.ResolvedLocation{
				Geo:       domain.Geo{Lat: e.Lat, Lon: e.Lon},
				PlaceName: e.PlaceName,
				FromCache: true,
			}, false, nil
		}
	case errors.Is(err, store.ErrNotFound):
		// Miss: fall through to the provider.
	default:
		return nil, false, fmt.Errorf("geocode cache lookup: %w", err)
	}
	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	if r.geocoder == nil {
		return nil, false, nil
	}

	result, err := r.geocoder.Geocode(ctx, location)
	if err != nil {
		return nil, true, fmt.Errorf("geocode %q: %w", location, err)
	}
	if !result.Found() {
		return nil, true, nil
	}

	e := entry{
		Key:        key,
		Lat:        result.Lat,
		Lon:        result.Lon,
		PlaceName:  result.PlaceName,
		ResolvedAt: r.clock.Now(),
	}
	data, err = json.Marshal(e)
	if err != nil {
		return nil, true, fmt.Errorf("marshal geocode entry: %w", err)
	}
	if err := r.kv.Put(ctx, feedKey, key, data); err != nil {
		// The coordinates are still good for this request even if the
		// write-back failed; the next miss will retry it.
		r.logger.Warn("geocode cache write failed", "key", key, "error", err)
	}

	return &domain.ResolvedLocation{
		Geo:       domain.Geo{Lat: result.Lat, Lon: result.Lon},
		PlaceName: result.PlaceName,
	}, true, nil
}
