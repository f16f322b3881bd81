package domain

import (
	"context"
	"log/slog"
	"time"
)

// EnrichWithCoordinates fills in missing coordinates on a batch of alert
// records by resolving each record's location text. Records that already
// carry coordinates (RSS feeds supply their own) are never touched, and a
// record with no location is left as-is — an extraction miss is a valid
// outcome, not an error.
//
// Provider calls are issued sequentially with a small throttle between them
// to stay under the geocoding provider's burst-rate limits. Every call that
// reached the provider is throttled, including ones that errored or matched
// nothing; cache hits are not. Resolver failures degrade to an unresolved
// record rather than aborting the batch.
func EnrichWithCoordinates(ctx context.Context, records []AlertRecord, resolver Resolver, feedKey string, throttle time.Duration, logger *slog.Logger) []AlertRecord {
	if resolver == nil {
		return records
	}

	for i := range records {
		rec := &records[i]
		if rec.Geo != nil || rec.Location == "" {
			continue
		}

		resolved, queried, err := resolver.Resolve(ctx, rec.Location, feedKey)
		switch {
		case err != nil:
			logger.Warn("geocode resolve failed",
				"feed", feedKey,
				"location", rec.Location,
				"error", err,
			)
		case resolved != nil:
			geo := resolved.Geo
			rec.Geo = &geo
			rec.PlaceName = resolved.PlaceName
		}

		if queried && throttle > 0 {
			select {
			case <-ctx.Done():
				return records
			case <-time.After(throttle):
			}
		}
	}

	return records
}
