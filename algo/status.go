package algo

import (
	"context"
	"fmt"

	"bus-tracker/model"
)

// BusStatus is everything the engine can say about one bus right now.
// Nil fields mean there was not enough data to derive them.
type BusStatus struct {
	Bus        model.Bus       `json:"bus"`
	Position   *model.Position `json:"position"`
	Velocity   *float64        `json:"velocity"` // m/s
	Direction  model.Direction `json:"direction"`
	Heading    *float64        `json:"heading"` // planar angle, see AverageHeading
	Bearing    *float64        `json:"bearing"` // degrees from true north
	NextStop   *NextStop       `json:"next_stop"`
	ETAMinutes *float64        `json:"eta_minutes"`
	Upcoming   []model.Stop    `json:"upcoming"`
}

// Status derives position, kinematics, direction, next stop, ETA and the
// upcoming stops of bus in one pass over the store.
func (e *Engine) Status(ctx context.Context, bus *model.Bus) (*BusStatus, error) {
	st := &BusStatus{Bus: *bus, Upcoming: []model.Stop{}}

	// 1. Kinematics need only the fixes
	pos, err := e.store.CurrentPosition(ctx, bus.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current position: %w", err)
	}
	st.Position = pos

	v, ok, err := e.Velocity(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		st.Velocity = &v
	}

	h, ok, err := e.Heading(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		st.Heading = &h
	}

	b, ok, err := e.Bearing(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		st.Bearing = &b
	}

	if bus.RouteID == nil || pos == nil {
		return st, nil
	}

	// 2. Direction and next stop need the route
	st.Direction, err = e.Direction(ctx, bus)
	if err != nil {
		return nil, err
	}
	st.NextStop, err = e.nextStopFor(ctx, bus, st.Direction)
	if err != nil {
		return nil, err
	}
	if st.NextStop == nil {
		return st, nil
	}

	// 3. ETA and the stops after the next one
	eta, ok, err := e.ArrivalMinutes(ctx, bus, st.NextStop.Stop, st.Velocity)
	if err != nil {
		return nil, err
	}
	if ok {
		st.ETAMinutes = &eta
	}

	st.Upcoming, err = e.upcomingFrom(ctx, bus, st.Direction, st.NextStop, e.tun.UpcomingStops)
	if err != nil {
		return nil, err
	}
	return st, nil
}
