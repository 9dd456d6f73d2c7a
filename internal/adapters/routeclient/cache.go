package routeclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freightline/service-loads/internal/domain/routing"
)

// ResolutionCache is a redis-backed cache of route resolutions keyed by the
// normalized ordered location list. A nil cache is valid and disables
// caching.
type ResolutionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResolutionCache creates a ResolutionCache with the given TTL.
func NewResolutionCache(client *redis.Client, ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{client: client, ttl: ttl}
}

// CacheKey derives the redis key for an ordered location list. Order matters:
// the same stops in a different order are a different route.
func CacheKey(locations []routing.Location) string {
	parts := make([]string, len(locations))
	for i, l := range locations {
		parts[i] = l.Key()
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return "route:v1:" + hex.EncodeToString(sum[:])
}

// Get returns the cached resolution for the location list, if any.
func (c *ResolutionCache) Get(ctx context.Context, locations []routing.Location) (routing.Resolution, bool, error) {
	if c == nil || c.client == nil {
		return routing.Resolution{}, false, nil
	}

	raw, err := c.client.Get(ctx, CacheKey(locations)).Bytes()
	if errors.Is(err, redis.Nil) {
		return routing.Resolution{}, false, nil
	}
	if err != nil {
		return routing.Resolution{}, false, err
	}

	var res routing.Resolution
	if err := json.Unmarshal(raw, &res); err != nil {
		return routing.Resolution{}, false, err
	}
	res.Cached = true
	return res, true, nil
}

// Put stores a resolution for the location list.
func (c *ResolutionCache) Put(ctx context.Context, locations []routing.Location, res routing.Resolution) error {
	if c == nil || c.client == nil {
		return nil
	}

	res.Cached = false
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKey(locations), raw, c.ttl).Err()
}
