// Package routing turns stop sequences into street-following paths using
// an external routing engine, plus hand-authored segments the engine
// cannot route.
package routing

import (
	"context"
	"errors"
	"time"

	"bus-tracker/model"
)

// ErrNoRoute means the provider answered but found no path.
var ErrNoRoute = errors.New("no route found")

// Provider returns an ordered polyline through the waypoints.
type Provider interface {
	Route(ctx context.Context, waypoints []model.Point) ([]model.Point, error)
	Name() string
}

// Metrics receives per-call observations. Collector in package metrics
// satisfies it.
type Metrics interface {
	RoutingObserve(provider string, err error, d time.Duration)
	RoutingCacheHit()
}

// NoopProvider never routes. It is used when no provider is configured, so
// paths consist of custom segments only.
type NoopProvider struct{}

func (NoopProvider) Route(context.Context, []model.Point) ([]model.Point, error) {
	return nil, ErrNoRoute
}

func (NoopProvider) Name() string { return "none" }
