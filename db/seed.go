package db

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lib/pq"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// SeedSet is a seed file converted into records ready for insertion.
// BusDrivers maps a bus name to the username of its driver.
type SeedSet struct {
	Routes     []model.Route
	Stops      []model.Stop
	Segments   []model.PathSegment
	Users      []model.User
	Buses      []model.Bus
	BusDrivers map[string]string
	Schedules  []model.Schedule
}

// LoadSeedFile reads and converts a JSON seed file.
func LoadSeedFile(path string) (*SeedSet, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var data model.SeedData
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return BuildSeed(&data)
}

// BuildSeed validates seed data and turns it into model records. Route ids
// default to their 1-based position in the file; passwords are hashed.
func BuildSeed(data *model.SeedData) (*SeedSet, error) {
	set := &SeedSet{BusDrivers: make(map[string]string)}
	routeIDs := make(map[uint]bool)

	for i, r := range data.Routes {
		id := r.ID
		if id == 0 {
			id = uint(i + 1)
		}
		if routeIDs[id] {
			return nil, fmt.Errorf("route %q: duplicate id %d", r.Name, id)
		}
		routeIDs[id] = true

		color := r.Color
		if color == "" {
			color = model.DefaultRouteColor
		}
		set.Routes = append(set.Routes, model.Route{
			ID:          id,
			Name:        r.Name,
			Origin:      r.Origin,
			Destination: r.Destination,
			Color:       color,
			Active:      true,
		})

		seen := make(map[string]bool)
		for _, s := range r.Stops {
			dir, ok := model.ParseDirection(s.Direction)
			if !ok {
				return nil, fmt.Errorf("route %q stop %q: unknown direction %q", r.Name, s.Name, s.Direction)
			}
			key := fmt.Sprintf("%s/%d", dir, s.Order)
			if seen[key] {
				return nil, fmt.Errorf("route %q: duplicate order %d in %s", r.Name, s.Order, dir)
			}
			seen[key] = true
			set.Stops = append(set.Stops, model.Stop{
				Name:      s.Name,
				Lat:       s.Lat,
				Lng:       s.Lng,
				RouteID:   id,
				Direction: dir,
				Order:     s.Order,
			})
		}

		for _, seg := range r.Segments {
			dir, ok := model.ParseDirection(seg.Direction)
			if !ok {
				return nil, fmt.Errorf("route %q segment: unknown direction %q", r.Name, seg.Direction)
			}
			role, err := parseRole(seg.Role)
			if err != nil {
				return nil, fmt.Errorf("route %q segment: %w", r.Name, err)
			}
			points := make([]model.Point, len(seg.Points))
			for j, c := range seg.Points {
				points[j] = model.Point{Lat: c[0], Lng: c[1]}
			}
			set.Segments = append(set.Segments, model.PathSegment{
				RouteID:   id,
				Direction: dir,
				Role:      role,
				Polyline:  utils.EncodePath(points),
				Active:    true,
			})
		}
	}

	for _, d := range data.Drivers {
		hash, err := utils.HashPassword(d.Password)
		if err != nil {
			return nil, fmt.Errorf("driver %q: failed to hash password: %w", d.Username, err)
		}
		set.Users = append(set.Users, model.User{Username: d.Username, Password: hash, Email: d.Email})
	}

	for _, b := range data.Buses {
		if b.RouteID != nil && !routeIDs[*b.RouteID] {
			return nil, fmt.Errorf("bus %q: unknown route %d", b.Name, *b.RouteID)
		}
		set.Buses = append(set.Buses, model.Bus{Name: b.Name, RouteID: b.RouteID, Active: true})
		if b.Driver != "" {
			set.BusDrivers[b.Name] = b.Driver
		}
	}

	for _, s := range data.Schedules {
		if !routeIDs[s.RouteID] {
			return nil, fmt.Errorf("schedule %s: unknown route %d", s.Departure, s.RouteID)
		}
		set.Schedules = append(set.Schedules, model.Schedule{
			RouteID:   s.RouteID,
			Departure: s.Departure,
			Period:    model.Period(strings.ToLower(s.Period)),
			Days:      pq.StringArray(s.Days),
			Active:    true,
		})
	}

	return set, nil
}

func parseRole(s string) (model.SegmentRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lead_in", "start", "inicio":
		return model.RoleLeadIn, nil
	case "lead_out", "end", "final":
		return model.RoleLeadOut, nil
	}
	return "", fmt.Errorf("unknown segment role %q", s)
}
