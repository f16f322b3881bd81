// Package config loads service settings from environment variables, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream feeds. An empty URL disables that feed.
	PagerFeedURL string
	VicFeedURL   string
	NswFeedURL   string

	FeedTTL      time.Duration
	FeedTTLs     map[string]time.Duration // per-feed overrides, keyed by feed key
	FetchTimeout time.Duration
	UserAgent    string

	// Persistent store. Bucket takes precedence; with neither set the
	// service runs degraded with no caching at all.
	StorageBucket string
	StorageDir    string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	RegionQualifier string
	GeocodeThrottle time.Duration

	// Kafka publishing (feature-flagged).
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	// Background refresh loop.
	RefreshEnabled  bool
	RefreshInterval time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file is the normal deployed case.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	feedTTL, err := parseDuration("FEED_TTL", "60s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "12s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocodeThrottle, err := parseDuration("GEOCODE_THROTTLE", "100ms")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PagerFeedURL: os.Getenv("PAGER_FEED_URL"),
		VicFeedURL:   os.Getenv("VIC_FEED_URL"),
		NswFeedURL:   os.Getenv("NSW_FEED_URL"),

		FeedTTL:      feedTTL,
		FetchTimeout: fetchTimeout,
		UserAgent:    envOrDefault("USER_AGENT", "alert-feed-service/1.0"),

		StorageBucket: os.Getenv("STORAGE_BUCKET"),
		StorageDir:    os.Getenv("STORAGE_DIR"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		RegionQualifier: envOrDefault("REGION_QUALIFIER", "VIC, Australia"),
		GeocodeThrottle: geocodeThrottle,

		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "fire-alerts"),
		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",

		RefreshEnabled:  os.Getenv("REFRESH_ENABLED") == "true",
		RefreshInterval: refreshInterval,
	}

	cfg.FeedTTLs, err = parseFeedTTLs()
	if err != nil {
		return nil, err
	}

	if cfg.PagerFeedURL == "" && cfg.VicFeedURL == "" && cfg.NswFeedURL == "" {
		return nil, errors.New("at least one of PAGER_FEED_URL, VIC_FEED_URL, NSW_FEED_URL is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// TTLFor returns the cache TTL for a feed, applying any per-feed override.
func (c *Config) TTLFor(feedKey string) time.Duration {
	if ttl, ok := c.FeedTTLs[feedKey]; ok {
		return ttl
	}
	return c.FeedTTL
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// parseFeedTTLs reads FEED_TTL_OVERRIDES, a comma-separated list of
// key=duration pairs, e.g. "cfa-pager=30s,nsw-incidents=5m".
func parseFeedTTLs() (map[string]time.Duration, error) {
	out := make(map[string]time.Duration)
	raw := os.Getenv("FEED_TTL_OVERRIDES")
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid FEED_TTL_OVERRIDES entry: %q", pair)
		}
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid FEED_TTL_OVERRIDES duration for %q: %q", key, val)
		}
		out[strings.TrimSpace(key)] = d
	}
	return out, nil
}
