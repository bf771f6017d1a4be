package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-tracker/model"
	"bus-tracker/utils"
)

const sampleSeed = `{
  "meta": {"version": 1},
  "routes": [{
    "name": "Campus Loop",
    "origin": "North Gate",
    "destination": "Library",
    "stops": [
      {"name": "North Gate", "lat": -12.0560, "lng": -77.0840, "order": 1, "direction": "ida"},
      {"name": "Library", "lat": -12.0580, "lng": -77.0820, "order": 2, "direction": "outbound"},
      {"name": "Library", "lat": -12.0581, "lng": -77.0821, "order": 1, "direction": "vuelta"}
    ],
    "segments": [
      {"direction": "ida", "role": "inicio", "points": [[-12.0550, -77.0850], [-12.0555, -77.0845]]}
    ]
  }],
  "drivers": [{"username": "driver1", "password": "secret", "email": "d1@example.com"}],
  "buses": [{"name": "Bus 1", "driver": "driver1", "route_id": 1}],
  "schedules": [{"route_id": 1, "departure": "07:30", "period": "Morning", "days": ["mon", "tue"]}]
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	set, err := LoadSeedFile(writeSeed(t, sampleSeed))
	require.NoError(t, err)

	require.Len(t, set.Routes, 1)
	assert.Equal(t, uint(1), set.Routes[0].ID)
	assert.Equal(t, model.DefaultRouteColor, set.Routes[0].Color)

	require.Len(t, set.Stops, 3)
	assert.Equal(t, model.DirectionOutbound, set.Stops[0].Direction)
	assert.Equal(t, model.DirectionInbound, set.Stops[2].Direction)

	require.Len(t, set.Segments, 1)
	assert.Equal(t, model.RoleLeadIn, set.Segments[0].Role)
	points, err := utils.DecodePath(set.Segments[0].Polyline)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	require.Len(t, set.Users, 1)
	assert.True(t, utils.CheckPassword(set.Users[0].Password, "secret"))
	assert.Equal(t, "driver1", set.BusDrivers["Bus 1"])

	require.Len(t, set.Schedules, 1)
	assert.Equal(t, model.PeriodMorning, set.Schedules[0].Period)
	assert.Equal(t, []string{"mon", "tue"}, []string(set.Schedules[0].Days))
}

func TestBuildSeedRejectsBadInput(t *testing.T) {
	routeID := uint(9)
	tests := []struct {
		name string
		data model.SeedData
	}{
		{"unknown direction", model.SeedData{Routes: []model.SeedRoute{{Name: "R", Stops: []model.SeedStop{{Name: "A", Direction: "sideways"}}}}}},
		{"duplicate order", model.SeedData{Routes: []model.SeedRoute{{Name: "R", Stops: []model.SeedStop{
			{Name: "A", Order: 1, Direction: "outbound"},
			{Name: "B", Order: 1, Direction: "outbound"},
		}}}}},
		{"bus on unknown route", model.SeedData{Buses: []model.SeedBus{{Name: "B", RouteID: &routeID}}}},
		{"bad segment role", model.SeedData{Routes: []model.SeedRoute{{Name: "R", Segments: []model.SeedSegment{{Direction: "outbound", Role: "middle"}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSeed(&tt.data)
			assert.Error(t, err)
		})
	}
}

func TestLoadSeedFileMissing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
