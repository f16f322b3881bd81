package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat       float64
	Lon       float64
	PlaceName string
}

// Found reports whether the provider returned a usable coordinate pair.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Geocoder converts a free-text location to coordinates.
type Geocoder interface {
	// Geocode forward-geocodes a location string. A zero GeocodingResult
	// with a nil error means the provider had no match.
	Geocode(ctx context.Context, location string) (GeocodingResult, error)
}

// ResolvedLocation is a resolver answer for one location string.
type ResolvedLocation struct {
	Geo       Geo
	PlaceName string
	// FromCache is true when the answer came from the persistent cache and
	// no provider call was made.
	FromCache bool
}

// Resolver answers location lookups through the write-once geocode cache.
// A nil result with a nil error is an expected miss, not a failure. queried
// reports whether the provider was actually called, regardless of outcome,
// so callers can pace consecutive provider calls.
type Resolver interface {
	Resolve(ctx context.Context, location, feedKey string) (resolved *ResolvedLocation, queried bool, err error)
}
