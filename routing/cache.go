package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"bus-tracker/model"
)

// Cached wraps a provider with an LRU cache keyed by the waypoint list.
// Failures are not cached so a flaky provider is retried on the next call.
type Cached struct {
	next    Provider
	cache   gcache.Cache
	metrics Metrics
}

func NewCached(next Provider, size int, ttl time.Duration, m Metrics) *Cached {
	return &Cached{
		next:    next,
		cache:   gcache.New(size).LRU().Expiration(ttl).Build(),
		metrics: m,
	}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Route(ctx context.Context, waypoints []model.Point) ([]model.Point, error) {
	key := cacheKey(waypoints)
	if v, err := c.cache.Get(key); err == nil {
		if c.metrics != nil {
			c.metrics.RoutingCacheHit()
		}
		return v.([]model.Point), nil
	}

	start := time.Now()
	path, err := c.next.Route(ctx, waypoints)
	if c.metrics != nil {
		c.metrics.RoutingObserve(c.next.Name(), err, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(key, path)
	return path, nil
}

// cacheKey rounds to 6 decimals, about 0.1 m.
func cacheKey(waypoints []model.Point) string {
	var b strings.Builder
	for i, p := range waypoints {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.6f,%.6f", p.Lat, p.Lng)
	}
	return b.String()
}
