package algo

import (
	"context"
	"fmt"
	"math"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// EstimateArrival converts a distance in meters and a speed in m/s into
// minutes. Short trips get a slowdown factor and every kilometer adds a
// congestion allowance. The result never drops below MinETAMinutes.
func EstimateArrival(distance, velocity float64, t Tunables) float64 {
	if velocity <= 0 {
		velocity = t.DefaultVelocity
	}

	adjusted := velocity
	switch {
	case distance < t.NearSlowdownDistance:
		adjusted *= t.NearSlowdownFactor
	case distance < t.MidSlowdownDistance:
		adjusted *= t.MidSlowdownFactor
	}

	seconds := distance/adjusted + (distance/1000)*t.CongestionPerKm
	return math.Max(t.MinETAMinutes, seconds/60)
}

// ArrivalMinutes estimates how long the bus needs to reach stop. velocity
// overrides the estimate when non-nil and positive; otherwise the measured
// velocity is used, then DefaultVelocity. ok is false when the bus has no
// position.
func (e *Engine) ArrivalMinutes(ctx context.Context, bus *model.Bus, stop model.Stop, velocity *float64) (float64, bool, error) {
	pos, err := e.store.CurrentPosition(ctx, bus.ID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load current position: %w", err)
	}
	if pos == nil {
		return 0, false, nil
	}

	v, err := e.resolveVelocity(ctx, bus.ID, velocity)
	if err != nil {
		return 0, false, err
	}
	return EstimateArrival(utils.Distance(pos.Point(), stop.Point()), v, e.tun), true, nil
}

func (e *Engine) resolveVelocity(ctx context.Context, busID uint, override *float64) (float64, error) {
	if override != nil && *override > 0 {
		return *override, nil
	}
	v, ok, err := e.Velocity(ctx, busID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return e.tun.DefaultVelocity, nil
	}
	return v, nil
}
