// Package httpapi exposes the read API for the display layer plus health,
// readiness, and metrics endpoints. The display layer never reaches the
// upstream feeds or the geocoder directly; everything goes through the
// feed service.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberwatch/alert-feed-service/internal/feed"
	"github.com/emberwatch/alert-feed-service/internal/feedcache"
)

// feedRequestTimeout bounds one feed serve including a possible upstream
// fetch and geocoding enrichment.
const feedRequestTimeout = 30 * time.Second

// FeedGetter serves enriched feeds by key.
type FeedGetter interface {
	Keys() []string
	Get(ctx context.Context, feedKey string) (*feedcache.Result, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server is the HTTP surface of the service.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	feeds      FeedGetter
	ready      ReadinessChecker
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, feeds FeedGetter, ready ReadinessChecker, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	s := &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: feedRequestTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		feeds:  feeds,
		ready:  ready,
		logger: logger,
	}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/readyz", s.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/api/v1/feeds", s.handleListFeeds)
	engine.GET("/api/v1/feeds/:feed", s.handleGetFeed)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready.CheckReadiness(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": s.feeds.Keys()})
}

// handleGetFeed serves one enriched feed. The status field tells the caller
// how the data was obtained (fresh-fetch, cache-hit, stale-fallback) so it
// can warn about data age instead of showing an error page.
func (s *Server) handleGetFeed(c *gin.Context) {
	feedKey := c.Param("feed")

	ctx, cancel := context.WithTimeout(c.Request.Context(), feedRequestTimeout)
	defer cancel()

	res, err := s.feeds.Get(ctx, feedKey)
	switch {
	case errors.Is(err, feed.ErrUnknownFeed):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed: " + feedKey})
		return
	case errors.Is(err, feedcache.ErrNoCachedData):
		c.JSON(http.StatusBadGateway, gin.H{"error": "feed unavailable and no cached data"})
		return
	case err != nil:
		s.logger.Error("feed serve failed", "feed", feedKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":      feedKey,
		"status":    res.Status,
		"cached_at": res.CachedAt,
		"count":     len(res.Records),
		"alerts":    res.Records,
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
