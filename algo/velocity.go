package algo

import (
	"context"
	"fmt"
	"time"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// EstimateVelocity averages speed over consecutive fixes ordered oldest
// first. Segments with non-positive elapsed time or an instantaneous speed
// outside [MinSegmentSpeed, MaxSegmentSpeed] are dropped. The result is
// capped at MaxVelocity. ok is false when nothing usable remains.
func EstimateVelocity(positions []model.Position, t Tunables) (float64, bool) {
	if len(positions) < 2 {
		return 0, false
	}

	var totalDist, totalSecs float64
	for i := 1; i < len(positions); i++ {
		prev, cur := positions[i-1], positions[i]
		secs := cur.RecordedAt.Sub(prev.RecordedAt).Seconds()
		if secs <= 0 {
			continue
		}
		dist := utils.Distance(prev.Point(), cur.Point())
		speed := dist / secs
		if speed < t.MinSegmentSpeed || speed > t.MaxSegmentSpeed {
			continue
		}
		totalDist += dist
		totalSecs += secs
	}
	if totalSecs == 0 {
		return 0, false
	}

	v := totalDist / totalSecs
	if v > t.MaxVelocity {
		v = t.MaxVelocity
	}
	return v, true
}

// Velocity estimates the bus speed over the default window.
func (e *Engine) Velocity(ctx context.Context, busID uint) (float64, bool, error) {
	return e.VelocityWithin(ctx, busID, e.tun.VelocityWindow)
}

// VelocityWithin estimates the bus speed from fixes inside window.
func (e *Engine) VelocityWithin(ctx context.Context, busID uint, window time.Duration) (float64, bool, error) {
	recent, err := e.store.RecentPositions(ctx, busID, e.now().Add(-window), 0)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load positions for velocity: %w", err)
	}
	v, ok := EstimateVelocity(oldestFirst(recent), e.tun)
	return v, ok, nil
}

// oldestFirst returns a reversed copy of a newest-first slice.
func oldestFirst(positions []model.Position) []model.Position {
	out := make([]model.Position, len(positions))
	for i, p := range positions {
		out[len(positions)-1-i] = p
	}
	return out
}
