package algo

import (
	"context"
	"fmt"
	"math"
	"sort"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// Method records how a next stop was chosen.
type Method string

const (
	MethodScored  Method = "scored"
	MethodNearest Method = "nearest"
)

// NextStop is the selected stop with the figures that led to it.
type NextStop struct {
	Stop      model.Stop `json:"stop"`
	Distance  float64    `json:"distance"`
	Score     float64    `json:"score"`
	Alignment float64    `json:"alignment"`
	Passed    bool       `json:"passed"`
	Method    Method     `json:"method"`
}

// NearestStop finds the stop closest to p by raw distance.
func NearestStop(p model.Point, stops []model.Stop) (model.Stop, float64, bool) {
	var nearest model.Stop
	minDist := -1.0
	for _, s := range stops {
		d := utils.Distance(p, s.Point())
		if minDist < 0 || d < minDist {
			minDist = d
			nearest = s
		}
	}
	if minDist < 0 {
		return model.Stop{}, 0, false
	}
	return nearest, minDist, true
}

// DistanceScore maps a distance in meters to the stepped proximity score.
func DistanceScore(d, radius float64) float64 {
	switch {
	case d <= 100:
		return 1.0
	case d <= 200:
		return 0.8
	case d <= 300:
		return 0.6
	}
	return math.Max(0.1, 1-d/radius)
}

// Alignment turns the angular gap between heading and bearing into [0, 1].
func Alignment(heading, bearing float64) float64 {
	a := 1 - utils.AngularDifference(heading, bearing)/180
	return math.Min(1, math.Max(0, a))
}

// StopPassed reports whether any fix in history lies within radius of stop.
func StopPassed(history []model.Position, stop model.Stop, radius float64) bool {
	for _, p := range history {
		if utils.Distance(p.Point(), stop.Point()) <= radius {
			return true
		}
	}
	return false
}

// ScoreCandidates scores every stop within CandidateRadius of pos and
// returns them best first. Passed stops always rank after unpassed ones;
// equal scores keep the order of stops. hasHeading false gives every
// candidate a neutral alignment of 0.5.
func ScoreCandidates(pos model.Point, heading float64, hasHeading bool, stops []model.Stop, history []model.Position, t Tunables) []NextStop {
	var candidates []NextStop
	for _, s := range stops {
		d := utils.Distance(pos, s.Point())
		if d > t.CandidateRadius {
			continue
		}

		align := 0.5
		if hasHeading {
			align = Alignment(heading, utils.PlanarAngle(pos, s.Point()))
		}
		passed := StopPassed(history, s, t.PassedRadius)

		score := t.DistanceWeight*DistanceScore(d, t.CandidateRadius) +
			t.AlignmentWeight*align +
			t.OrderWeight*t.OrderBonus
		if passed {
			score -= t.PassedPenalty
		}

		candidates = append(candidates, NextStop{
			Stop:      s,
			Distance:  d,
			Score:     math.Max(0, score),
			Alignment: align,
			Passed:    passed,
			Method:    MethodScored,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Passed != candidates[j].Passed {
			return !candidates[i].Passed
		}
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// NearestRouteStop is the direction-agnostic selector: the closest stop of
// the bus's route to its current position. Returns nil when the bus has no
// route, no position, or the route has no stops.
func (e *Engine) NearestRouteStop(ctx context.Context, bus *model.Bus) (*NextStop, error) {
	if bus == nil || bus.RouteID == nil {
		return nil, nil
	}
	pos, err := e.store.CurrentPosition(ctx, bus.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current position: %w", err)
	}
	if pos == nil {
		return nil, nil
	}
	stops, err := e.store.StopsByRoute(ctx, *bus.RouteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load route stops: %w", err)
	}
	stop, d, ok := NearestStop(pos.Point(), stops)
	if !ok {
		return nil, nil
	}
	return &NextStop{Stop: stop, Distance: d, Alignment: 0.5, Method: MethodNearest}, nil
}

// NextStop picks the stop the bus is approaching. With an unknown
// direction, or no candidate inside the radius, it falls back to
// NearestRouteStop. A nil result means there is not enough data.
func (e *Engine) NextStop(ctx context.Context, bus *model.Bus) (*NextStop, error) {
	if bus == nil || bus.RouteID == nil {
		return nil, nil
	}

	dir, err := e.Direction(ctx, bus)
	if err != nil {
		return nil, err
	}
	return e.nextStopFor(ctx, bus, dir)
}

func (e *Engine) nextStopFor(ctx context.Context, bus *model.Bus, dir model.Direction) (*NextStop, error) {
	if !dir.Known() {
		return e.NearestRouteStop(ctx, bus)
	}

	pos, err := e.store.CurrentPosition(ctx, bus.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current position: %w", err)
	}
	if pos == nil {
		return nil, nil
	}

	heading, hasHeading, err := e.Heading(ctx, bus.ID)
	if err != nil {
		return nil, err
	}

	stops, err := e.store.StopsByDirection(ctx, *bus.RouteID, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s stops: %w", dir, err)
	}
	if len(stops) == 0 {
		return nil, nil
	}

	history, err := e.store.PositionsSince(ctx, bus.ID, e.now().Add(-e.tun.PassedWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load positions for passed check: %w", err)
	}

	candidates := ScoreCandidates(pos.Point(), heading, hasHeading, stops, history, e.tun)
	if len(candidates) == 0 {
		return e.NearestRouteStop(ctx, bus)
	}
	best := candidates[0]
	return &best, nil
}
