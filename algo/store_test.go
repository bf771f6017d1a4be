package algo

import (
	"context"
	"errors"
	"sort"
	"time"

	"bus-tracker/model"
)

var errNoBus = errors.New("no such bus")

// fakeStore keeps everything in slices; positions are stored oldest first.
type fakeStore struct {
	buses     map[uint]*model.Bus
	stops     []model.Stop
	positions map[uint][]model.Position
	failAll   error
	// panicBus makes CurrentPosition panic for that bus.
	panicBus uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{buses: map[uint]*model.Bus{}, positions: map[uint][]model.Position{}}
}

func (f *fakeStore) addBus(id uint, routeID *uint) *model.Bus {
	b := &model.Bus{ID: id, Name: "bus", RouteID: routeID, Active: true}
	f.buses[id] = b
	return b
}

func (f *fakeStore) addPosition(busID uint, lat, lng float64, at time.Time) {
	id := uint(len(f.positions[busID]) + 1 + int(busID)*1000)
	f.positions[busID] = append(f.positions[busID], model.Position{
		ID: id, BusID: busID, Lat: lat, Lng: lng, RecordedAt: at, Active: true,
	})
	ts := at
	f.buses[busID].CurrentPositionID = &id
	f.buses[busID].LastUpdate = &ts
}

func (f *fakeStore) GetBus(_ context.Context, id uint) (*model.Bus, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	b, ok := f.buses[id]
	if !ok {
		return nil, errNoBus
	}
	return b, nil
}

func (f *fakeStore) CurrentPosition(_ context.Context, busID uint) (*model.Position, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	if f.panicBus != 0 && busID == f.panicBus {
		panic("corrupt position row")
	}
	b, ok := f.buses[busID]
	if !ok || b.CurrentPositionID == nil {
		return nil, nil
	}
	for _, p := range f.positions[busID] {
		if p.ID == *b.CurrentPositionID {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) RecentPositions(_ context.Context, busID uint, since time.Time, limit int) ([]model.Position, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []model.Position
	all := f.positions[busID]
	for i := len(all) - 1; i >= 0; i-- {
		p := all[i]
		if !p.Active || p.RecordedAt.Before(since) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) PositionsSince(_ context.Context, busID uint, since time.Time) ([]model.Position, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []model.Position
	all := f.positions[busID]
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].RecordedAt.Before(since) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// sweep marks every fix recorded before cutoff inactive, as the stores do.
func (f *fakeStore) sweep(cutoff time.Time) {
	for _, ps := range f.positions {
		for i := range ps {
			if ps[i].RecordedAt.Before(cutoff) {
				ps[i].Active = false
			}
		}
	}
}

func (f *fakeStore) StopsByDirection(_ context.Context, routeID uint, dir model.Direction) ([]model.Stop, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []model.Stop
	for _, s := range f.stops {
		if s.RouteID == routeID && s.Direction == dir {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (f *fakeStore) StopsByRoute(_ context.Context, routeID uint) ([]model.Stop, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []model.Stop
	for _, s := range f.stops {
		if s.RouteID == routeID {
			out = append(out, s)
		}
	}
	return out, nil
}

// campusFixture is a straight north-south street. Outbound stops run north
// along lng -77.000; inbound stops run south along lng -76.997, about 327 m
// east.
var fixtureNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func uintPtr(v uint) *uint { return &v }

func campusFixture() *fakeStore {
	f := newFakeStore()
	f.stops = []model.Stop{
		{ID: 1, Name: "O1", Lat: -12.000, Lng: -77.000, RouteID: 1, Direction: model.DirectionOutbound, Order: 1},
		{ID: 2, Name: "O2", Lat: -11.998, Lng: -77.000, RouteID: 1, Direction: model.DirectionOutbound, Order: 2},
		{ID: 3, Name: "O3", Lat: -11.996, Lng: -77.000, RouteID: 1, Direction: model.DirectionOutbound, Order: 3},
		{ID: 4, Name: "O4", Lat: -11.994, Lng: -77.000, RouteID: 1, Direction: model.DirectionOutbound, Order: 4},
		{ID: 5, Name: "I1", Lat: -11.994, Lng: -76.997, RouteID: 1, Direction: model.DirectionInbound, Order: 1},
		{ID: 6, Name: "I2", Lat: -11.996, Lng: -76.997, RouteID: 1, Direction: model.DirectionInbound, Order: 2},
		{ID: 7, Name: "I3", Lat: -11.998, Lng: -76.997, RouteID: 1, Direction: model.DirectionInbound, Order: 3},
		{ID: 8, Name: "I4", Lat: -12.000, Lng: -76.997, RouteID: 1, Direction: model.DirectionInbound, Order: 4},
	}

	// bus 1 drives north through O1 and is now 55 m past it
	f.addBus(1, uintPtr(1))
	f.addPosition(1, -12.0010, -77.000, fixtureNow.Add(-60*time.Second))
	f.addPosition(1, -12.0005, -77.000, fixtureNow.Add(-40*time.Second))
	f.addPosition(1, -12.0000, -77.000, fixtureNow.Add(-20*time.Second))
	f.addPosition(1, -11.9995, -77.000, fixtureNow)

	// bus 2 has a single fix close to O3
	f.addBus(2, uintPtr(1))
	f.addPosition(2, -11.9961, -77.0001, fixtureNow)

	// bus 3 drives south on the inbound street
	f.addBus(3, uintPtr(1))
	f.addPosition(3, -11.9950, -76.997, fixtureNow.Add(-20*time.Second))
	f.addPosition(3, -11.9955, -76.997, fixtureNow)

	// bus 4 has no route
	f.addBus(4, nil)
	f.addPosition(4, -12.0, -77.0, fixtureNow)

	return f
}

func newFixtureEngine(f *fakeStore) *Engine {
	e := NewEngine(f, DefaultTunables())
	e.SetClock(func() time.Time { return fixtureNow })
	return e
}
