package feed

import (
	"context"
	"errors"

	"github.com/emberwatch/alert-feed-service/internal/feedcache"
)

// ErrUnknownFeed reports a request for a feed key that isn't registered.
var ErrUnknownFeed = errors.New("unknown feed key")

// Service is the read API over the registered feeds: it binds each feed's
// fetcher and parser to the cache coordinator. Callers never reach upstream
// or the geocoder directly.
type Service struct {
	registry Registry
	fetcher  *Fetcher
	cache    *feedcache.Coordinator
}

// NewService creates the feed service.
func NewService(registry Registry, fetcher *Fetcher, cache *feedcache.Coordinator) *Service {
	return &Service{registry: registry, fetcher: fetcher, cache: cache}
}

// Keys returns the registered feed keys.
func (s *Service) Keys() []string {
	return s.registry.Keys()
}

// Get serves one feed through the cache coordinator, fetching and enriching
// only when the cached snapshot has gone stale.
func (s *Service) Get(ctx context.Context, feedKey string) (*feedcache.Result, error) {
	f, ok := s.registry[feedKey]
	if !ok {
		return nil, ErrUnknownFeed
	}
	fetch := func(ctx context.Context) ([]byte, error) {
		return s.fetcher.Fetch(ctx, f.Key, f.URL)
	}
	return s.cache.GetEnrichedFeed(ctx, f.Key, f.TTL, fetch, f.Parser.Parse)
}
