package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/emberwatch/alert-feed-service/internal/observability"
)

// maxPayloadBytes caps how much of an upstream response is read. The real
// feeds are tens of kilobytes; anything near this limit is broken upstream.
const maxPayloadBytes = 8 << 20

// Fetcher retrieves raw feed payloads over HTTP. One fetcher is shared by
// all feeds; per-request state lives in the context.
type Fetcher struct {
	client    *http.Client
	userAgent string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewFetcher creates a fetcher with a hard request timeout. The timeout
// bounds the whole request including body read, independent of the caller's
// context.
func NewFetcher(timeout time.Duration, userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// Fetch performs a single GET of the feed URL and returns the body bytes.
// Any non-2xx status is an error; the body is not inspected for partial
// usefulness.
func (f *Fetcher) Fetch(ctx context.Context, feedKey, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	f.metrics.FetchDuration.WithLabelValues(feedKey).Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.FeedFetches.WithLabelValues(feedKey, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", feedKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.FeedFetches.WithLabelValues(feedKey, "error").Inc()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", feedKey, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		f.metrics.FeedFetches.WithLabelValues(feedKey, "error").Inc()
		return nil, fmt.Errorf("read %s body: %w", feedKey, err)
	}

	f.metrics.FeedFetches.WithLabelValues(feedKey, "success").Inc()
	f.logger.Debug("fetched feed", "feed", feedKey, "bytes", len(body))
	return body, nil
}
