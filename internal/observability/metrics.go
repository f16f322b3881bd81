package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// feed service.
type Metrics struct {
	// Feed lifecycle metrics.
	FeedFetches    *prometheus.CounterVec // labels: feed, outcome={success,error}
	FeedServes     *prometheus.CounterVec // labels: feed, status={fresh-fetch,cache-hit,stale-fallback}
	FetchDuration  *prometheus.HistogramVec
	RecordsParsed  *prometheus.CounterVec
	ParseErrors    *prometheus.CounterVec
	RefreshRunning prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Publishing metrics.
	AlertsPublished prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "fetches_total",
			Help:      "Upstream feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedServes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "serves_total",
			Help:      "Feed requests served, by feed and cache status.",
		}, []string{"feed", "status"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alert_feed",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"feed"}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "records_parsed_total",
			Help:      "Alert records parsed from upstream payloads, by feed.",
		}, []string{"feed"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "parse_errors_total",
			Help:      "Items skipped because their payload row was malformed.",
		}, []string{"feed"}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alert_feed",
			Name:      "refresh_running",
			Help:      "1 when the background refresh loop is active, 0 when shut down.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alert_feed",
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alert_feed",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_feed",
			Name:      "alerts_published_total",
			Help:      "Newly seen alerts published to the broker.",
		}),
	}

	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedServes,
		m.FetchDuration,
		m.RecordsParsed,
		m.ParseErrors,
		m.RefreshRunning,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.AlertsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeedFetches:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "alert_feed", Name: "fetches_total"}, []string{"feed", "outcome"}),
		FeedServes:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "alert_feed", Name: "serves_total"}, []string{"feed", "status"}),
		FetchDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "alert_feed", Name: "fetch_duration_seconds"}, []string{"feed"}),
		RecordsParsed:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "alert_feed", Name: "records_parsed_total"}, []string{"feed"}),
		ParseErrors:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "alert_feed", Name: "parse_errors_total"}, []string{"feed"}),
		RefreshRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "alert_feed", Name: "refresh_running"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "alert_feed", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "alert_feed", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "alert_feed", Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "alert_feed", Name: "geocode_enabled"}),
		AlertsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "alert_feed", Name: "alerts_published_total"}),
	}
}
