package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so ambient shell state and any
// .env file override cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
		"PAGER_FEED_URL", "VIC_FEED_URL", "NSW_FEED_URL",
		"FEED_TTL", "FEED_TTL_OVERRIDES", "FETCH_TIMEOUT", "USER_AGENT",
		"STORAGE_BUCKET", "STORAGE_DIR",
		"MAPBOX_TOKEN", "MAPBOX_ENABLED", "MAPBOX_TIMEOUT",
		"REGION_QUALIFIER", "GEOCODE_THROTTLE",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_ENABLED",
		"REFRESH_ENABLED", "REFRESH_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAGER_FEED_URL", "https://example.test/pager")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.FeedTTL)
	assert.Equal(t, 12*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "alert-feed-service/1.0", cfg.UserAgent)
	assert.Equal(t, "VIC, Australia", cfg.RegionQualifier)
	assert.Equal(t, 100*time.Millisecond, cfg.GeocodeThrottle)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fire-alerts", cfg.KafkaTopic)
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.MapboxEnabled)
	assert.False(t, cfg.RefreshEnabled)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIC_FEED_URL", "https://example.test/vic.rss")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FEED_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("MAPBOX_TOKEN", "pk.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.FeedTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.MapboxEnabled, "a token implies geocoding on")
}

func TestLoadMapboxExplicitlyDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAGER_FEED_URL", "https://example.test/pager")
	t.Setenv("MAPBOX_TOKEN", "pk.test")
	t.Setenv("MAPBOX_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}

func TestLoadRequiresAFeedURL(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGER_FEED_URL")
}

func TestLoadMapboxEnabledWithoutToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAGER_FEED_URL", "https://example.test/pager")
	t.Setenv("MAPBOX_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoadKafkaEnabledWithoutBrokers(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAGER_FEED_URL", "https://example.test/pager")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoadInvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAGER_FEED_URL", "https://example.test/pager")
	t.Setenv("FEED_TTL", "sixty seconds")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_TTL")
}

func TestLoadFeedTTLOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAGER_FEED_URL", "https://example.test/pager")
	t.Setenv("FEED_TTL_OVERRIDES", "cfa-pager=30s, nsw-incidents=5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.TTLFor("cfa-pager"))
	assert.Equal(t, 5*time.Minute, cfg.TTLFor("nsw-incidents"))
	assert.Equal(t, 60*time.Second, cfg.TTLFor("vic-incidents"), "unlisted feeds use the global TTL")
}

func TestLoadFeedTTLOverridesMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"missing equals", "cfa-pager 30s"},
		{"bad duration", "cfa-pager=fast"},
		{"negative duration", "cfa-pager=-30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PAGER_FEED_URL", "https://example.test/pager")
			t.Setenv("FEED_TTL_OVERRIDES", tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
