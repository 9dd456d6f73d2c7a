// Package routeclient implements the routing.Resolver port against the
// Freightline routing gateway, with a redis cache in front of it.
package routeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/domain/routing"
	"github.com/freightline/service-loads/pkg/domain"
)

// GatewayResolver resolves routes through the routing gateway's HTTP API.
//
// It coordinates:
//   - Routability checks before any external call
//   - Cache-aside resolution caching (forceRefresh bypasses the read)
//   - External API calls with retry/backoff
//
// The resolver is stateless per invocation and safe for concurrent use.
type GatewayResolver struct {
	session *http.Client
	baseURL string
	apiKey  string
	cache   *ResolutionCache
	logger  *zap.Logger
}

// NewGatewayResolver creates a GatewayResolver. cache may be nil to disable
// caching.
func NewGatewayResolver(baseURL, apiKey string, cache *ResolutionCache, logger *zap.Logger) (*GatewayResolver, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("routing gateway base URL is empty")
	}
	return &GatewayResolver{
		session: &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		cache:   cache,
		logger:  logger,
	}, nil
}

type routeRequest struct {
	Locations []routing.Location `json:"locations"`
}

type routeResponse struct {
	DistanceMiles float64 `json:"distance_miles"`
	DurationHours float64 `json:"duration_hours"`
	Geometry      string  `json:"geometry"`
}

// Resolve computes distance and geometry for the ordered location list.
// Locations that are not routable (missing city or state) are skipped; fewer
// than two routable locations is an InsufficientLocationError. Gateway
// failures surface as UpstreamUnavailableError after retries.
func (r *GatewayResolver) Resolve(ctx context.Context, locations []routing.Location, opts routing.ResolveOptions) (routing.Resolution, error) {
	routable := make([]routing.Location, 0, len(locations))
	for _, l := range locations {
		if l.Routable() {
			routable = append(routable, l)
		}
	}
	if len(routable) < 2 {
		return routing.Resolution{}, domain.NewInsufficientLocationError(
			fmt.Sprintf("need at least two stops with city and state, have %d", len(routable)))
	}

	if !opts.ForceRefresh {
		cached, hit, err := r.cache.Get(ctx, routable)
		if err != nil {
			// A broken cache must not take route resolution down with it.
			r.logger.Warn("route cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	body, err := json.Marshal(routeRequest{Locations: routable})
	if err != nil {
		return routing.Resolution{}, fmt.Errorf("marshal route request: %w", err)
	}

	url := r.baseURL + "/v1/routes"
	resp, err := r.doWithRetry(ctx, func() (*http.Request, error) {
		return r.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	})
	if err != nil {
		return routing.Resolution{}, domain.NewUpstreamUnavailableError("route calculation failed", err)
	}
	defer resp.Body.Close()

	var parsed routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return routing.Resolution{}, domain.NewUpstreamUnavailableError("malformed routing gateway response", err)
	}

	res := routing.Resolution{
		DistanceMiles: parsed.DistanceMiles,
		DurationHours: parsed.DurationHours,
		Geometry:      parsed.Geometry,
		ResolvedAt:    time.Now().UTC(),
	}

	if err := r.cache.Put(ctx, routable, res); err != nil {
		r.logger.Warn("route cache write failed", zap.Error(err))
	}

	return res, nil
}
