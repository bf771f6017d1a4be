package model

import (
	"time"

	"github.com/lib/pq"
)

// DefaultRouteColor is used when a route is seeded without a color.
const DefaultRouteColor = "#FF0000"

// Route owns two ordered stop sequences, one per direction.
type Route struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Color       string    `json:"color" gorm:"type:varchar(7);default:'#FF0000'"`
	Active      bool      `json:"active" gorm:"default:true;index"`
	CreatedAt   time.Time `json:"-"`
}

// SegmentRole places a custom segment before or after the provider path.
type SegmentRole string

const (
	RoleLeadIn  SegmentRole = "lead_in"
	RoleLeadOut SegmentRole = "lead_out"
)

// PathSegment is a hand-authored stretch of road the routing provider
// cannot follow. Coordinates are stored as an encoded polyline.
type PathSegment struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	RouteID   uint        `json:"route_id" gorm:"not null;index:idx_segments_key,priority:1"`
	Direction Direction   `json:"direction" gorm:"type:varchar(16);not null;index:idx_segments_key,priority:2"`
	Role      SegmentRole `json:"role" gorm:"type:varchar(16);not null;index:idx_segments_key,priority:3"`
	Polyline  string      `json:"polyline" gorm:"type:text;not null"`
	Active    bool        `json:"active" gorm:"default:true"`
	CreatedAt time.Time   `json:"-"`
}

// Period groups departures by time of day.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodMidday    Period = "midday"
	PeriodAfternoon Period = "afternoon"
)

// Schedule is one planned departure of a route.
type Schedule struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	RouteID   uint           `json:"route_id" gorm:"not null;index"`
	Departure string         `json:"departure" gorm:"type:varchar(5);not null"` // HH:MM
	Period    Period         `json:"period" gorm:"type:varchar(16)"`
	Days      pq.StringArray `json:"days" gorm:"type:text[]"`
	Active    bool           `json:"active" gorm:"default:true"`
}
