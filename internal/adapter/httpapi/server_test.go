package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/alert-feed-service/internal/adapter/httpapi"
	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/feed"
	"github.com/emberwatch/alert-feed-service/internal/feedcache"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockFeeds struct {
	result *feedcache.Result
	err    error
}

func (m *mockFeeds) Keys() []string { return []string{feed.KeyPager} }

func (m *mockFeeds) Get(_ context.Context, feedKey string) (*feedcache.Result, error) {
	if feedKey != feed.KeyPager {
		return nil, feed.ErrUnknownFeed
	}
	return m.result, m.err
}

func newTestServer(feeds httpapi.FeedGetter, readyErr error) *httpapi.Server {
	return httpapi.NewServer(":0", feeds, &mockReadiness{err: readyErr}, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockFeeds{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockFeeds{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockFeeds{}, fmt.Errorf("no refresh cycle has completed yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no refresh cycle has completed yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockFeeds{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListFeeds(t *testing.T) {
	srv := newTestServer(&mockFeeds{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feeds", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Feeds []string `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{feed.KeyPager}, body.Feeds)
}

func TestGetFeedServesRecordsWithStatus(t *testing.T) {
	cachedAt := time.Date(2024, 1, 15, 3, 30, 0, 0, time.UTC)
	feeds := &mockFeeds{
		result: &feedcache.Result{
			Records: []domain.AlertRecord{
				{
					Message:    "@@ALERT GRASS FIRE 230 CHURCHILL RD YARRAWONGA / F123456789",
					Timestamp:  cachedAt,
					Location:   "Churchill Rd, Yarrawonga",
					IncidentID: "F123456789",
					Source:     domain.SourcePager,
				},
			},
			CachedAt: cachedAt,
			Status:   feedcache.StatusCacheHit,
		},
	}
	srv := newTestServer(feeds, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feeds/"+feed.KeyPager, nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Feed     string               `json:"feed"`
		Status   string               `json:"status"`
		CachedAt time.Time            `json:"cached_at"`
		Count    int                  `json:"count"`
		Alerts   []domain.AlertRecord `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, feed.KeyPager, body.Feed)
	assert.Equal(t, "cache-hit", body.Status)
	assert.True(t, body.CachedAt.Equal(cachedAt))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "F123456789", body.Alerts[0].IncidentID)
}

func TestGetFeedUnknownKeyReturns404(t *testing.T) {
	srv := newTestServer(&mockFeeds{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feeds/no-such-feed", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFeedNoCachedDataReturns502(t *testing.T) {
	feeds := &mockFeeds{
		err: errors.Join(feedcache.ErrNoCachedData, errors.New("connection refused")),
	}
	srv := newTestServer(feeds, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feeds/"+feed.KeyPager, nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
