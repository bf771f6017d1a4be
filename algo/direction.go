package algo

import (
	"context"
	"fmt"
	"math"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// ClassifyDirection votes over samples: each sample gives one point to
// outbound when its nearest outbound stop is strictly closer, and to
// inbound otherwise. Outbound wins only with more points than inbound, so
// both equidistant samples and a drawn vote go inbound. Fewer than two
// samples or no stops at all yields DirectionUnknown.
func ClassifyDirection(samples []model.Point, outbound, inbound []model.Stop) model.Direction {
	if len(samples) < 2 || (len(outbound) == 0 && len(inbound) == 0) {
		return model.DirectionUnknown
	}

	outVotes, inVotes := 0, 0
	for _, p := range samples {
		dOut := minStopDistance(p, outbound)
		dIn := minStopDistance(p, inbound)
		if dOut < dIn {
			outVotes++
		} else {
			inVotes++
		}
	}

	if outVotes > inVotes {
		return model.DirectionOutbound
	}
	return model.DirectionInbound
}

func minStopDistance(p model.Point, stops []model.Stop) float64 {
	best := math.Inf(1)
	for _, s := range stops {
		if d := utils.Distance(p, s.Point()); d < best {
			best = d
		}
	}
	return best
}

// Direction classifies which stop sequence of its route the bus follows.
func (e *Engine) Direction(ctx context.Context, bus *model.Bus) (model.Direction, error) {
	if bus == nil || bus.RouteID == nil {
		return model.DirectionUnknown, nil
	}

	recent, err := e.store.RecentPositions(ctx, bus.ID, e.now().Add(-e.tun.DirectionWindow), e.tun.DirectionSamples)
	if err != nil {
		return model.DirectionUnknown, fmt.Errorf("failed to load positions for direction: %w", err)
	}
	if len(recent) < 2 {
		return model.DirectionUnknown, nil
	}

	outbound, err := e.store.StopsByDirection(ctx, *bus.RouteID, model.DirectionOutbound)
	if err != nil {
		return model.DirectionUnknown, fmt.Errorf("failed to load outbound stops: %w", err)
	}
	inbound, err := e.store.StopsByDirection(ctx, *bus.RouteID, model.DirectionInbound)
	if err != nil {
		return model.DirectionUnknown, fmt.Errorf("failed to load inbound stops: %w", err)
	}

	samples := make([]model.Point, len(recent))
	for i, p := range recent {
		samples[i] = p.Point()
	}
	return ClassifyDirection(samples, outbound, inbound), nil
}
