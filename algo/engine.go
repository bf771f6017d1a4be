package algo

import (
	"context"
	"time"

	"bus-tracker/model"
)

// Store is the read side the engine needs. Implementations live in db.
type Store interface {
	GetBus(ctx context.Context, id uint) (*model.Bus, error)
	// CurrentPosition returns nil, nil when the bus never reported.
	CurrentPosition(ctx context.Context, busID uint) (*model.Position, error)
	// RecentPositions returns active fixes recorded at or after since,
	// newest first. limit <= 0 means no limit.
	RecentPositions(ctx context.Context, busID uint, since time.Time, limit int) ([]model.Position, error)
	// PositionsSince returns every fix recorded at or after since, swept
	// ones included, newest first.
	PositionsSince(ctx context.Context, busID uint, since time.Time) ([]model.Position, error)
	// StopsByDirection returns the stops of one route direction ordered by Order.
	StopsByDirection(ctx context.Context, routeID uint, dir model.Direction) ([]model.Stop, error)
	StopsByRoute(ctx context.Context, routeID uint) ([]model.Stop, error)
}

// Engine interprets position history into direction, next stop and ETA.
// It holds no per-bus state; every call reads the store again.
type Engine struct {
	store Store
	tun   Tunables
	now   func() time.Time
}

// NewEngine builds an engine over store.
func NewEngine(store Store, tun Tunables) *Engine {
	return &Engine{store: store, tun: tun, now: time.Now}
}

// SetClock replaces the time source, used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) Tunables() Tunables {
	return e.tun
}
