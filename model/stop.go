package model

import "strings"

// Direction is one of the two travel variants of a route.
type Direction string

const (
	DirectionUnknown  Direction = ""
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// ParseDirection accepts the canonical names and the ida/vuelta aliases
// found in older seed files.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outbound", "ida", "out":
		return DirectionOutbound, true
	case "inbound", "vuelta", "in":
		return DirectionInbound, true
	}
	return DirectionUnknown, false
}

func (d Direction) Known() bool {
	return d == DirectionOutbound || d == DirectionInbound
}

// Stop is a fixed waypoint inside a (route, direction) sequence.
// Order is unique per (route, direction).
type Stop struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	RouteID   uint      `json:"route_id" gorm:"not null;uniqueIndex:idx_stops_route_dir_order,priority:1"`
	Direction Direction `json:"direction" gorm:"type:varchar(16);not null;uniqueIndex:idx_stops_route_dir_order,priority:2"`
	Order     int       `json:"order" gorm:"column:stop_order;not null;uniqueIndex:idx_stops_route_dir_order,priority:3"`
}

func (s Stop) Point() Point {
	return Point{Lat: s.Lat, Lng: s.Lng}
}
