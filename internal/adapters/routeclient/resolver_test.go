package routeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/domain/routing"
	"github.com/freightline/service-loads/pkg/domain"
)

func testLocations() []routing.Location {
	return []routing.Location{
		{City: "Chicago", State: "IL"},
		{City: "Dallas", State: "TX"},
	}
}

func newTestCache(t *testing.T) *ResolutionCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewResolutionCache(client, time.Hour)
}

func newGatewayServer(t *testing.T, calls *int32, res routeResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/routes", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req routeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_InsufficientLocations(t *testing.T) {
	resolver, err := NewGatewayResolver("http://unused", "test-key", nil, zap.NewNop())
	require.NoError(t, err)

	// One routable, one not.
	_, err = resolver.Resolve(context.Background(), []routing.Location{
		{City: "Chicago", State: "IL"},
		{City: "Dallas"},
	}, routing.ResolveOptions{})

	assert.True(t, domain.IsInsufficientLocation(err))
}

func TestResolve_SkipsUnroutableLocations(t *testing.T) {
	var seen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req routeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = len(req.Locations)
		_ = json.NewEncoder(w).Encode(routeResponse{DistanceMiles: 925})
	}))
	defer srv.Close()

	resolver, err := NewGatewayResolver(srv.URL, "test-key", nil, zap.NewNop())
	require.NoError(t, err)

	locs := []routing.Location{
		{City: "Chicago", State: "IL"},
		{Line: "mystery warehouse"}, // not routable, dropped
		{City: "Tulsa", State: "OK"},
		{City: "Dallas", State: "TX"},
	}
	_, err = resolver.Resolve(context.Background(), locs, routing.ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestResolve_Success(t *testing.T) {
	var calls int32
	srv := newGatewayServer(t, &calls, routeResponse{DistanceMiles: 925, DurationHours: 14.2, Geometry: "abc123"})

	resolver, err := NewGatewayResolver(srv.URL, "test-key", nil, zap.NewNop())
	require.NoError(t, err)

	res, err := resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{})
	require.NoError(t, err)

	assert.Equal(t, 925.0, res.DistanceMiles)
	assert.Equal(t, 14.2, res.DurationHours)
	assert.Equal(t, "abc123", res.Geometry)
	assert.False(t, res.Cached)
	assert.False(t, res.ResolvedAt.IsZero())
}

func TestResolve_CacheHitSkipsGateway(t *testing.T) {
	var calls int32
	srv := newGatewayServer(t, &calls, routeResponse{DistanceMiles: 925, DurationHours: 14.2})

	resolver, err := NewGatewayResolver(srv.URL, "test-key", newTestCache(t), zap.NewNop())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{})
	require.NoError(t, err)

	res, err := resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{})
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Equal(t, 925.0, res.DistanceMiles)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResolve_ForceRefreshBypassesCache(t *testing.T) {
	var calls int32
	srv := newGatewayServer(t, &calls, routeResponse{DistanceMiles: 925, DurationHours: 14.2})

	resolver, err := NewGatewayResolver(srv.URL, "test-key", newTestCache(t), zap.NewNop())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{})
	require.NoError(t, err)

	res, err := resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{ForceRefresh: true})
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolve_DifferentOrderIsDifferentCacheKey(t *testing.T) {
	locs := testLocations()
	reversed := []routing.Location{locs[1], locs[0]}
	assert.NotEqual(t, CacheKey(locs), CacheKey(reversed))
}

func TestResolve_RetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(routeResponse{DistanceMiles: 925, DurationHours: 14.2})
	}))
	defer srv.Close()

	resolver, err := NewGatewayResolver(srv.URL, "test-key", nil, zap.NewNop())
	require.NoError(t, err)

	res, err := resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 925.0, res.DistanceMiles)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolve_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	resolver, err := NewGatewayResolver(srv.URL, "test-key", nil, zap.NewNop())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), testLocations(), routing.ResolveOptions{})
	assert.True(t, domain.IsUpstreamUnavailable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
