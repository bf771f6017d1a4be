package algo

import (
	"context"
	"errors"
	"fmt"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// Arrival is the bus expected next at a stop.
type Arrival struct {
	Bus        model.Bus `json:"bus"`
	Distance   float64   `json:"distance"`
	ETAMinutes float64   `json:"eta_minutes"`
	NextStop   *NextStop `json:"next_stop,omitempty"`
}

// NextArrival returns the closest bus among buses that has not yet passed
// stop. A bus qualifies when it serves the stop's route, it is not
// classified in the opposite direction, it has not been near the stop
// within PassedWindow, and its own next stop in the same direction does
// not lie beyond the target. Buses that fail to evaluate are skipped and
// their errors, recovered panics included, joined into err; the best remaining arrival is still
// returned.
func (e *Engine) NextArrival(ctx context.Context, stop model.Stop, buses []model.Bus) (*Arrival, error) {
	var best *Arrival
	var errs []error

	for i := range buses {
		bus := &buses[i]
		if bus.RouteID == nil || *bus.RouteID != stop.RouteID {
			continue
		}
		a, err := e.safeArrival(ctx, bus, stop)
		if err != nil {
			errs = append(errs, fmt.Errorf("bus %d: %w", bus.ID, err))
			continue
		}
		if a != nil && (best == nil || a.Distance < best.Distance) {
			best = a
		}
	}
	return best, errors.Join(errs...)
}

func (e *Engine) safeArrival(ctx context.Context, bus *model.Bus, stop model.Stop) (a *Arrival, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.arrivalFor(ctx, bus, stop)
}

func (e *Engine) arrivalFor(ctx context.Context, bus *model.Bus, stop model.Stop) (*Arrival, error) {
	pos, err := e.store.CurrentPosition(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, nil
	}

	dir, err := e.Direction(ctx, bus)
	if err != nil {
		return nil, err
	}
	if dir.Known() && dir != stop.Direction {
		return nil, nil
	}

	history, err := e.store.PositionsSince(ctx, bus.ID, e.now().Add(-e.tun.PassedWindow))
	if err != nil {
		return nil, err
	}
	if StopPassed(history, stop, e.tun.PassedRadius) {
		return nil, nil
	}

	next, err := e.nextStopFor(ctx, bus, dir)
	if err != nil {
		return nil, err
	}
	if next != nil && next.Stop.Direction == stop.Direction && next.Stop.Order > stop.Order {
		return nil, nil
	}

	eta, _, err := e.ArrivalMinutes(ctx, bus, stop, nil)
	if err != nil {
		return nil, err
	}
	return &Arrival{
		Bus:        *bus,
		Distance:   utils.Distance(pos.Point(), stop.Point()),
		ETAMinutes: eta,
		NextStop:   next,
	}, nil
}
