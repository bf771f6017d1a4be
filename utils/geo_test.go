package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-tracker/model"
)

func TestDistanceCoincidentIsZero(t *testing.T) {
	points := []model.Point{
		{Lat: 0, Lng: 0},
		{Lat: -12.0464, Lng: -77.0428},
		{Lat: 89.9, Lng: 179.9},
		{Lat: -45.5, Lng: 170.25},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		a, b     model.Point
		expected float64
		delta    float64
	}{
		{"one degree of latitude at equator", model.Point{Lat: 0, Lng: 0}, model.Point{Lat: 1, Lng: 0}, 110574.4, 1},
		{"one degree of longitude at equator", model.Point{Lat: 0, Lng: 0}, model.Point{Lat: 0, Lng: 1}, 111319.5, 1},
		{"short urban hop", model.Point{Lat: -12.0, Lng: -77.0}, model.Point{Lat: -12.001, Lng: -77.001}, 155.2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), tt.delta)
			assert.InDelta(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a), 1e-6)
		})
	}
}

func TestDistanceCloseToHaversineAtShortRange(t *testing.T) {
	a := model.Point{Lat: 40.4168, Lng: -3.7038}
	b := model.Point{Lat: 40.4200, Lng: -3.7000}
	// sub-kilometer distances agree within a few meters
	assert.InDelta(t, HaversineDistance(a, b), Distance(a, b), 3)
}

func TestDistanceAntipodalFallsBack(t *testing.T) {
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 0.5, Lng: 179.7}
	_, ok := VincentyDistance(a, b)
	require.False(t, ok)
	assert.Equal(t, HaversineDistance(a, b), Distance(a, b))
}

func TestPlanarAngle(t *testing.T) {
	origin := model.Point{Lat: 10, Lng: 10}
	assert.InDelta(t, 0, PlanarAngle(origin, model.Point{Lat: 11, Lng: 10}), 1e-9)
	assert.InDelta(t, 90, PlanarAngle(origin, model.Point{Lat: 10, Lng: 11}), 1e-9)
	assert.InDelta(t, 180, PlanarAngle(origin, model.Point{Lat: 9, Lng: 10}), 1e-9)
	assert.InDelta(t, 270, PlanarAngle(origin, model.Point{Lat: 10, Lng: 9}), 1e-9)
}

func TestAngularDifference(t *testing.T) {
	assert.InDelta(t, 20, AngularDifference(350, 10), 1e-9)
	assert.InDelta(t, 180, AngularDifference(0, 180), 1e-9)
	assert.InDelta(t, 0, AngularDifference(-90, 270), 1e-9)
	assert.InDelta(t, 90, AngularDifference(45, 135), 1e-9)
}

func TestInitialBearing(t *testing.T) {
	origin := model.Point{Lat: 10, Lng: 10}
	assert.InDelta(t, 0, InitialBearing(origin, model.Point{Lat: 11, Lng: 10}), 1e-9)
	assert.InDelta(t, 180, InitialBearing(origin, model.Point{Lat: 9, Lng: 10}), 1e-9)
	assert.InDelta(t, 90, InitialBearing(model.Point{}, model.Point{Lng: 1}), 1e-9)
	assert.InDelta(t, 270, InitialBearing(model.Point{}, model.Point{Lng: -1}), 1e-9)
}

func TestInitialBearingHighLatitude(t *testing.T) {
	// about 111 m north and 111 m east at 60 degrees north
	from := model.Point{Lat: 60.000, Lng: 10.000}
	to := model.Point{Lat: 60.001, Lng: 10.002}

	assert.InDelta(t, 45, InitialBearing(from, to), 0.5)
	// the planar frame ignores the shrinking of longitude degrees
	assert.InDelta(t, 63.4, PlanarAngle(from, to), 0.1)
}
