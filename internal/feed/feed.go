// Package feed turns raw upstream payloads into normalized alert records.
// Each upstream source has its own parser for its own dialect; all of them
// contain per-item failures so one malformed row never aborts a batch.
package feed

import (
	"time"

	"github.com/emberwatch/alert-feed-service/internal/domain"
)

// Parser converts one feed's raw payload into a sequence of alert records.
// Record order follows payload order; in-batch incident de-duplication
// depends on it.
type Parser interface {
	Parse(payload []byte) ([]domain.AlertRecord, error)
}

// Feed binds an upstream source to its parser and cache policy.
type Feed struct {
	Key    string
	URL    string
	TTL    time.Duration
	Parser Parser
}

// Registry maps feed keys to their configuration. Feeds refresh
// independently; there is no ordering between keys.
type Registry map[string]Feed

// Keys returns the registered feed keys.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}
