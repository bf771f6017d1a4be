package algo

import (
	"context"
	"fmt"

	"bus-tracker/model"
)

// RotateFrom walks stops circularly starting at stopID and returns n of
// them. ok is false when stopID is not in stops or stops is empty.
func RotateFrom(stops []model.Stop, stopID uint, n int) ([]model.Stop, bool) {
	start := -1
	for i, s := range stops {
		if s.ID == stopID {
			start = i
			break
		}
	}
	if start < 0 || n <= 0 {
		return nil, false
	}

	out := make([]model.Stop, n)
	for i := 0; i < n; i++ {
		out[i] = stops[(start+i)%len(stops)]
	}
	return out, true
}

// UpcomingStops lists n stops starting with the selected next stop and
// wrapping around the direction's sequence. If the direction is unknown or
// the next stop is not part of it, only the next stop is returned.
func (e *Engine) UpcomingStops(ctx context.Context, bus *model.Bus, n int) ([]model.Stop, error) {
	if bus == nil || bus.RouteID == nil {
		return nil, nil
	}
	dir, err := e.Direction(ctx, bus)
	if err != nil {
		return nil, err
	}
	next, err := e.nextStopFor(ctx, bus, dir)
	if err != nil || next == nil {
		return nil, err
	}
	return e.upcomingFrom(ctx, bus, dir, next, n)
}

func (e *Engine) upcomingFrom(ctx context.Context, bus *model.Bus, dir model.Direction, next *NextStop, n int) ([]model.Stop, error) {
	if n <= 0 {
		n = e.tun.UpcomingStops
	}
	if !dir.Known() {
		return []model.Stop{next.Stop}, nil
	}

	stops, err := e.store.StopsByDirection(ctx, *bus.RouteID, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s stops: %w", dir, err)
	}
	list, ok := RotateFrom(stops, next.Stop.ID, n)
	if !ok {
		return []model.Stop{next.Stop}, nil
	}
	return list, nil
}
