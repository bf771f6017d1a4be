package model

import "time"

// Bus is a vehicle with an optional route assignment. CurrentPositionID
// points at the latest accepted fix and moves in the same transaction
// that inserts it.
type Bus struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	Name              string     `json:"name" gorm:"uniqueIndex;not null"`
	DriverID          *uint      `json:"driver_id,omitempty" gorm:"uniqueIndex"`
	RouteID           *uint      `json:"route_id"`
	Route             *Route     `json:"route,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	Active            bool       `json:"active" gorm:"default:true"`
	LastUpdate        *time.Time `json:"last_update"`
	CurrentPositionID *uint      `json:"-"`
}

// Position is one GPS fix. Active turns false once the fix ages past the
// retention window.
type Position struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	BusID      uint      `json:"bus_id" gorm:"not null;index:idx_positions_bus_time,priority:1"`
	Lat        float64   `json:"lat" gorm:"not null"`
	Lng        float64   `json:"lng" gorm:"not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index:idx_positions_bus_time,priority:2"`
	Active     bool      `json:"active" gorm:"default:true;index"`
}

func (p Position) Point() Point {
	return Point{Lat: p.Lat, Lng: p.Lng}
}

// PositionEvent is what gets fanned out to subscribers after ingestion.
type PositionEvent struct {
	BusID      uint      `json:"bus_id"`
	BusName    string    `json:"bus_name"`
	RouteID    *uint     `json:"route_id,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}
