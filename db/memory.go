package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bus-tracker/model"
)

// DefaultRingSize is the number of fixes kept per bus by MemoryStore.
const DefaultRingSize = 512

// MemoryStore is a process-local store. Position history per bus is a
// bounded ring, so long-running buses never grow it past ringSize.
type MemoryStore struct {
	mu sync.RWMutex

	ringSize  int
	routes    map[uint]model.Route
	stops     map[uint]model.Stop
	buses     map[uint]*model.Bus
	users     map[uint]model.User
	segments  []model.PathSegment
	schedules []model.Schedule
	positions map[uint]*positionRing

	nextStop     uint
	nextBus      uint
	nextUser     uint
	nextSegment  uint
	nextSchedule uint
	nextPosition uint
}

// NewMemoryStore creates an empty store. ringSize <= 0 uses DefaultRingSize.
func NewMemoryStore(ringSize int) *MemoryStore {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &MemoryStore{
		ringSize:  ringSize,
		routes:    make(map[uint]model.Route),
		stops:     make(map[uint]model.Stop),
		buses:     make(map[uint]*model.Bus),
		users:     make(map[uint]model.User),
		positions: make(map[uint]*positionRing),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) IsEmpty(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.routes) == 0, nil
}

// Import loads a seed set, assigning ids the way a database would.
func (m *MemoryStore) Import(_ context.Context, set *SeedSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range set.Routes {
		m.routes[r.ID] = r
	}
	for _, s := range set.Stops {
		m.nextStop++
		s.ID = m.nextStop
		m.stops[s.ID] = s
	}
	for _, seg := range set.Segments {
		m.nextSegment++
		seg.ID = m.nextSegment
		m.segments = append(m.segments, seg)
	}

	userIDs := make(map[string]uint)
	for _, u := range set.Users {
		m.nextUser++
		u.ID = m.nextUser
		u.CreatedAt = time.Now()
		u.UpdatedAt = u.CreatedAt
		m.users[u.ID] = u
		userIDs[u.Username] = u.ID
	}
	for _, b := range set.Buses {
		m.nextBus++
		bus := b
		bus.ID = m.nextBus
		if name, ok := set.BusDrivers[bus.Name]; ok {
			uid, ok := userIDs[name]
			if !ok {
				return fmt.Errorf("bus %q: unknown driver %q", bus.Name, name)
			}
			bus.DriverID = &uid
		}
		m.buses[bus.ID] = &bus
	}
	for _, s := range set.Schedules {
		m.nextSchedule++
		s.ID = m.nextSchedule
		m.schedules = append(m.schedules, s)
	}
	return nil
}

func (m *MemoryStore) withRoute(b model.Bus) model.Bus {
	if b.RouteID != nil {
		if r, ok := m.routes[*b.RouteID]; ok {
			b.Route = &r
		}
	}
	return b
}

func (m *MemoryStore) GetBus(_ context.Context, id uint) (*model.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buses[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.withRoute(*b)
	return &out, nil
}

func (m *MemoryStore) GetBusByDriver(_ context.Context, userID uint) (*model.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.buses {
		if b.DriverID != nil && *b.DriverID == userID {
			out := m.withRoute(*b)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) LiveBuses(_ context.Context, since time.Time) ([]model.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Bus
	for _, b := range m.buses {
		if b.Active && b.LastUpdate != nil && !b.LastUpdate.Before(since) {
			out = append(out, m.withRoute(*b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CurrentPosition(_ context.Context, busID uint) (*model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buses[busID]
	if !ok || b.CurrentPositionID == nil {
		return nil, nil
	}
	ring := m.positions[busID]
	if ring == nil {
		return nil, nil
	}
	for i := ring.len() - 1; i >= 0; i-- {
		if p := ring.at(i); p.ID == *b.CurrentPositionID {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) RecentPositions(_ context.Context, busID uint, since time.Time, limit int) ([]model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ring := m.positions[busID]
	if ring == nil {
		return nil, nil
	}
	var out []model.Position
	for i := ring.len() - 1; i >= 0; i-- {
		p := ring.at(i)
		if !p.Active || p.RecordedAt.Before(since) {
			continue
		}
		out = append(out, *p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

// PositionsSince is RecentPositions without the active filter, bounded by
// what the ring still holds.
func (m *MemoryStore) PositionsSince(_ context.Context, busID uint, since time.Time) ([]model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ring := m.positions[busID]
	if ring == nil {
		return nil, nil
	}
	var out []model.Position
	for i := ring.len() - 1; i >= 0; i-- {
		if p := ring.at(i); !p.RecordedAt.Before(since) {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

// RecordPosition appends a fix and moves the bus pointer to it under the
// store lock.
func (m *MemoryStore) RecordPosition(_ context.Context, busID uint, p model.Point, at time.Time) (*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buses[busID]
	if !ok {
		return nil, ErrNotFound
	}
	m.nextPosition++
	pos := model.Position{ID: m.nextPosition, BusID: busID, Lat: p.Lat, Lng: p.Lng, RecordedAt: at, Active: true}

	ring := m.positions[busID]
	if ring == nil {
		ring = newPositionRing(m.ringSize)
		m.positions[busID] = ring
	}
	ring.push(pos)

	id := pos.ID
	ts := at
	b.CurrentPositionID = &id
	b.LastUpdate = &ts
	return &pos, nil
}

func (m *MemoryStore) ClearPositions(_ context.Context, busID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buses[busID]
	if !ok {
		return 0, ErrNotFound
	}
	var n int64
	if ring := m.positions[busID]; ring != nil {
		n = int64(ring.len())
		delete(m.positions, busID)
	}
	b.CurrentPositionID = nil
	b.LastUpdate = nil
	return n, nil
}

func (m *MemoryStore) SweepStale(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ring := range m.positions {
		for i := 0; i < ring.len(); i++ {
			if p := ring.at(i); p.Active && p.RecordedAt.Before(before) {
				p.Active = false
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) InactivePositionsBefore(_ context.Context, before time.Time, limit int) ([]model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Position
	for busID, ring := range m.positions {
		current := m.buses[busID].CurrentPositionID
		for i := 0; i < ring.len(); i++ {
			p := ring.at(i)
			if p.Active || !p.RecordedAt.Before(before) || (current != nil && *current == p.ID) {
				continue
			}
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeletePositions(_ context.Context, ids []uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[uint]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var n int64
	for _, ring := range m.positions {
		n += int64(ring.filter(func(p model.Position) bool { return !drop[p.ID] }))
	}
	return n, nil
}

func (m *MemoryStore) GetStop(_ context.Context, id uint) (*model.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) ListStops(_ context.Context) ([]model.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Stop, 0, len(m.stops))
	for _, s := range m.stops {
		out = append(out, s)
	}
	sortStops(out)
	return out, nil
}

func (m *MemoryStore) StopsByRoute(_ context.Context, routeID uint) ([]model.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Stop
	for _, s := range m.stops {
		if s.RouteID == routeID {
			out = append(out, s)
		}
	}
	sortStops(out)
	return out, nil
}

func (m *MemoryStore) StopsByDirection(_ context.Context, routeID uint, dir model.Direction) ([]model.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Stop
	for _, s := range m.stops {
		if s.RouteID == routeID && s.Direction == dir {
			out = append(out, s)
		}
	}
	sortStops(out)
	return out, nil
}

// sortStops orders like the SQL store: route, direction, order, id.
func sortStops(stops []model.Stop) {
	sort.Slice(stops, func(i, j int) bool {
		a, b := stops[i], stops[j]
		if a.RouteID != b.RouteID {
			return a.RouteID < b.RouteID
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}

func (m *MemoryStore) GetRoute(_ context.Context, id uint) (*model.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListRoutes(_ context.Context) ([]model.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Route
	for _, r := range m.routes {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Segments(_ context.Context, routeID uint, dir model.Direction) ([]model.PathSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PathSegment
	for _, s := range m.segments {
		if s.Active && s.RouteID == routeID && s.Direction == dir {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) Schedules(_ context.Context, routeID *uint) ([]model.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Schedule
	for _, s := range m.schedules {
		if s.Active && (routeID == nil || s.RouteID == *routeID) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RouteID != out[j].RouteID {
			return out[i].RouteID < out[j].RouteID
		}
		return out[i].Departure < out[j].Departure
	})
	return out, nil
}
