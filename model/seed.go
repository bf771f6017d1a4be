package model

// SeedData is the layout of the bootstrap file imported into an empty store.
type SeedData struct {
	Meta      map[string]interface{} `json:"meta"`
	Routes    []SeedRoute            `json:"routes"`
	Drivers   []SeedDriver           `json:"drivers"`
	Buses     []SeedBus              `json:"buses"`
	Schedules []SeedSchedule         `json:"schedules"`
}

type SeedRoute struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Color       string        `json:"color,omitempty"`
	Stops       []SeedStop    `json:"stops"`
	Segments    []SeedSegment `json:"segments,omitempty"`
}

// SeedStop keeps direction as a raw string so ida/vuelta files still load.
type SeedStop struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Order     int     `json:"order"`
	Direction string  `json:"direction"`
}

type SeedSegment struct {
	Direction string       `json:"direction"`
	Role      string       `json:"role"`
	Points    [][2]float64 `json:"points"` // [lat, lng]
}

type SeedDriver struct {
	Username string `json:"username"`
	Password string `json:"password"` // plain text in the file, hashed on import
	Email    string `json:"email"`
}

type SeedBus struct {
	Name    string `json:"name"`
	Driver  string `json:"driver,omitempty"`
	RouteID *uint  `json:"route_id,omitempty"`
}

type SeedSchedule struct {
	RouteID   uint     `json:"route_id"`
	Departure string   `json:"departure"`
	Period    string   `json:"period"`
	Days      []string `json:"days"`
}
