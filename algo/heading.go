package algo

import (
	"context"
	"fmt"
	"math"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// AverageHeading vector-averages the movement angle of consecutive fixes
// ordered newest first. Angles use the atan2(Δlng, Δlat) frame of
// utils.PlanarAngle, so the result is only comparable with bearings
// computed the same way.
func AverageHeading(newestFirst []model.Position) (float64, bool) {
	if len(newestFirst) < 2 {
		return 0, false
	}

	var x, y float64
	for i := 0; i+1 < len(newestFirst); i++ {
		newer, older := newestFirst[i], newestFirst[i+1]
		rad := utils.DegreesToRadians(utils.PlanarAngle(older.Point(), newer.Point()))
		x += math.Cos(rad)
		y += math.Sin(rad)
	}
	return utils.NormalizeDegrees(utils.RadiansToDegrees(math.Atan2(y, x))), true
}

// Heading is the averaged movement angle of the bus over recent fixes.
func (e *Engine) Heading(ctx context.Context, busID uint) (float64, bool, error) {
	recent, err := e.store.RecentPositions(ctx, busID, e.now().Add(-e.tun.HeadingWindow), e.tun.HeadingSamples)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load positions for heading: %w", err)
	}
	h, ok := AverageHeading(recent)
	return h, ok, nil
}

// Bearing is the compass bearing of the last move, from the previous fix
// to the current one, clockwise from true north. Unlike Heading it is
// correct at any latitude, so it is what leaves the process.
func (e *Engine) Bearing(ctx context.Context, busID uint) (float64, bool, error) {
	recent, err := e.store.RecentPositions(ctx, busID, e.now().Add(-e.tun.HeadingWindow), 2)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load positions for bearing: %w", err)
	}
	if len(recent) < 2 || recent[0].Point() == recent[1].Point() {
		return 0, false, nil
	}
	return utils.InitialBearing(recent[1].Point(), recent[0].Point()), true, nil
}
