package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/adapter/httpapi"
	kafkaadapter "github.com/emberwatch/alert-feed-service/internal/adapter/kafka"
	"github.com/emberwatch/alert-feed-service/internal/adapter/mapbox"
	"github.com/emberwatch/alert-feed-service/internal/config"
	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/feed"
	"github.com/emberwatch/alert-feed-service/internal/feedcache"
	"github.com/emberwatch/alert-feed-service/internal/geocache"
	"github.com/emberwatch/alert-feed-service/internal/observability"
	"github.com/emberwatch/alert-feed-service/internal/refresher"
	"github.com/emberwatch/alert-feed-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistent store: bucket, local directory, or degraded no-op. Without
	// a store the service still works but every request is a live fetch and
	// geocoding is uncached.
	var kv store.KV
	switch {
	case cfg.StorageBucket != "":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Error("failed to create storage client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		kv = store.New(client, cfg.StorageBucket, "", logger)
		logger.Info("using cloud storage", "bucket", cfg.StorageBucket)
	case cfg.StorageDir != "":
		kv = store.New(nil, "", cfg.StorageDir, logger)
		logger.Info("using local storage", "dir", cfg.StorageDir)
	default:
		kv = store.Noop{}
		logger.Warn("no storage configured, running without caching")
	}

	// Geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.RegionQualifier, cfg.MapboxTimeout, metrics, logger)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "region", cfg.RegionQualifier, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}
	resolver := geocache.New(kv, geocoder, clock, metrics, logger)

	registry := buildRegistry(cfg, clock, metrics, logger)
	if len(registry) == 0 {
		logger.Error("no feeds configured")
		os.Exit(1)
	}

	fetcher := feed.NewFetcher(cfg.FetchTimeout, cfg.UserAgent, metrics, logger)
	coordinator := feedcache.New(kv, resolver, clock, cfg.GeocodeThrottle, metrics, logger)
	service := feed.NewService(registry, fetcher, coordinator)

	var publisher refresher.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	var ready httpapi.ReadinessChecker = alwaysReady{}
	if cfg.RefreshEnabled {
		r := refresher.New(service, publisher, kv, clock, cfg.RefreshInterval, metrics, logger)
		ready = r
		go func() {
			if err := r.Run(ctx); err != nil {
				logger.Error("refresher error", "error", err)
			}
		}()
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, service, ready, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// buildRegistry registers each feed whose URL is configured.
func buildRegistry(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) feed.Registry {
	registry := feed.Registry{}
	if cfg.PagerFeedURL != "" {
		registry[feed.KeyPager] = feed.Feed{
			Key:    feed.KeyPager,
			URL:    cfg.PagerFeedURL,
			TTL:    cfg.TTLFor(feed.KeyPager),
			Parser: feed.NewPagerParser(clock, metrics, logger),
		}
	}
	if cfg.VicFeedURL != "" {
		registry[feed.KeyVic] = feed.Feed{
			Key:    feed.KeyVic,
			URL:    cfg.VicFeedURL,
			TTL:    cfg.TTLFor(feed.KeyVic),
			Parser: feed.NewVicParser(clock, metrics, logger),
		}
	}
	if cfg.NswFeedURL != "" {
		registry[feed.KeyNsw] = feed.Feed{
			Key:    feed.KeyNsw,
			URL:    cfg.NswFeedURL,
			TTL:    cfg.TTLFor(feed.KeyNsw),
			Parser: feed.NewNswParser(clock, metrics, logger),
		}
	}
	return registry
}

// alwaysReady is the readiness checker used when the background refresher
// is disabled: serving is purely on-demand, so the process is ready as soon
// as it listens.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }
