package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/observability"
	"github.com/emberwatch/alert-feed-service/internal/store"
)

const testFeed = "test-feed"
const testTTL = 60 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memKV is an in-memory store.KV for tests.
type memKV struct {
	rows map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{rows: make(map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, namespace, key string) ([]byte, error) {
	data, ok := m.rows[namespace+"/"+key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memKV) Put(_ context.Context, namespace, key string, data []byte) error {
	m.rows[namespace+"/"+key] = data
	return nil
}

func (m *memKV) Exists(_ context.Context, namespace, key string) (bool, error) {
	_, ok := m.rows[namespace+"/"+key]
	return ok, nil
}

// stubResolver resolves every location to a fixed coordinate.
type stubResolver struct {
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, _, _ string) (*domain.ResolvedLocation, bool, error) {
	s.calls++
	return &domain.ResolvedLocation{
		Geo:       domain.Geo{Lat: -36.55, Lon: 145.98},
		PlaceName: "Benalla, Victoria, Australia",
		FromCache: true,
	}, false, nil
}

// countingFetch returns a FetchFunc that counts invocations.
func countingFetch(calls *int, err error) FetchFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return []byte("payload"), nil
	}
}

func parseTo(records []domain.AlertRecord) ParseFunc {
	return func([]byte) ([]domain.AlertRecord, error) {
		out := make([]domain.AlertRecord, len(records))
		copy(out, records)
		return out, nil
	}
}

func sampleRecords() []domain.AlertRecord {
	return []domain.AlertRecord{
		{
			Message:    "@@ALERT GRASS FIRE 230 CHURCHILL RD YARRAWONGA / F123456789",
			Location:   "Churchill Rd, Yarrawonga",
			IncidentID: "F123456789",
			Source:     domain.SourcePager,
		},
	}
}

func newCoordinator(kv store.KV, clock clockwork.Clock) *Coordinator {
	return New(kv, &stubResolver{}, clock, 0, observability.NewMetricsForTesting(), discardLogger())
}

func TestFirstCallFetchesAndCaches(t *testing.T) {
	kv := newMemKV()
	clock := clockwork.NewFakeClock()
	c := newCoordinator(kv, clock)

	fetches := 0
	res, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)

	assert.Equal(t, StatusFreshFetch, res.Status)
	assert.Equal(t, 1, fetches)
	require.Len(t, res.Records, 1)
	require.NotNil(t, res.Records[0].Geo, "missing coordinates are enriched")
	assert.True(t, res.CachedAt.Equal(clock.Now()))

	_, err = kv.Get(context.Background(), testFeed, "latest")
	assert.NoError(t, err, "snapshot row written")
	_, err = kv.Get(context.Background(), testFeed, "fetch-tracker")
	assert.NoError(t, err, "tracker row written")
}

func TestFreshWindowServesCacheWithoutFetch(t *testing.T) {
	kv := newMemKV()
	clock := clockwork.NewFakeClock()
	c := newCoordinator(kv, clock)

	fetches := 0
	_, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)
	require.Equal(t, 1, fetches)

	// One millisecond short of the TTL: still fresh, zero fetch calls.
	clock.Advance(testTTL - time.Millisecond)
	res, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(nil))
	require.NoError(t, err)

	assert.Equal(t, StatusCacheHit, res.Status)
	assert.Equal(t, 1, fetches)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "F123456789", res.Records[0].IncidentID)
}

func TestStaleWindowTriggersExactlyOneFetch(t *testing.T) {
	kv := newMemKV()
	clock := clockwork.NewFakeClock()
	c := newCoordinator(kv, clock)

	fetches := 0
	_, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)

	// One millisecond past the TTL: stale, exactly one new fetch.
	clock.Advance(testTTL + time.Millisecond)
	res, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)

	assert.Equal(t, StatusFreshFetch, res.Status)
	assert.Equal(t, 2, fetches)
}

func TestStaleFallbackKeepsTrackerUnchanged(t *testing.T) {
	kv := newMemKV()
	clock := clockwork.NewFakeClock()
	c := newCoordinator(kv, clock)

	fetches := 0
	first, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)

	trackerBefore, err := kv.Get(context.Background(), testFeed, "fetch-tracker")
	require.NoError(t, err)

	clock.Advance(testTTL + time.Second)
	res, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, errors.New("connection refused")), parseTo(nil))
	require.NoError(t, err, "stale fallback is not an error")

	assert.Equal(t, StatusStaleFallback, res.Status)
	assert.Equal(t, first.Records, res.Records)
	assert.True(t, res.CachedAt.Equal(first.CachedAt))

	trackerAfter, err := kv.Get(context.Background(), testFeed, "fetch-tracker")
	require.NoError(t, err)
	assert.Equal(t, trackerBefore, trackerAfter, "failed refresh must not advance lastFetchAt")

	// The very next call retries immediately instead of waiting out a TTL.
	retried, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)
	assert.Equal(t, StatusFreshFetch, retried.Status)
}

func TestFetchFailureWithoutCacheIsError(t *testing.T) {
	c := newCoordinator(newMemKV(), clockwork.NewFakeClock())

	fetches := 0
	_, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, errors.New("connection refused")), parseTo(nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCachedData)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseFailureFallsBackLikeFetchFailure(t *testing.T) {
	kv := newMemKV()
	clock := clockwork.NewFakeClock()
	c := newCoordinator(kv, clock)

	fetches := 0
	_, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)

	clock.Advance(testTTL + time.Second)
	badParse := func([]byte) ([]domain.AlertRecord, error) {
		return nil, errors.New("truncated payload")
	}
	res, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), badParse)
	require.NoError(t, err)
	assert.Equal(t, StatusStaleFallback, res.Status)
}

func TestCorruptSnapshotTreatedAsStale(t *testing.T) {
	kv := newMemKV()
	clock := clockwork.NewFakeClock()
	c := newCoordinator(kv, clock)

	// A fresh tracker pointing at a garbage snapshot must fall through to a
	// live fetch rather than erroring.
	tracker, err := json.Marshal(domain.FetchTracker{FeedKey: testFeed, LastFetchAt: clock.Now()})
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), testFeed, "fetch-tracker", tracker))
	require.NoError(t, kv.Put(context.Background(), testFeed, "latest", []byte("not json")))

	fetches := 0
	res, err := c.GetEnrichedFeed(context.Background(), testFeed, testTTL,
		countingFetch(&fetches, nil), parseTo(sampleRecords()))
	require.NoError(t, err)
	assert.Equal(t, StatusFreshFetch, res.Status)
	assert.Equal(t, 1, fetches)
}
