package algo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-tracker/model"
)

func TestDistanceScore(t *testing.T) {
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 1.0},
		{100, 1.0},
		{150, 0.8},
		{200, 0.8},
		{300, 0.6},
		{400, 0.2},
		{480, 0.1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DistanceScore(tt.d, 500), 1e-9, "distance %v", tt.d)
	}
}

func TestAlignment(t *testing.T) {
	assert.InDelta(t, 1.0, Alignment(10, 10), 1e-9)
	assert.InDelta(t, 0.0, Alignment(0, 180), 1e-9)
	assert.InDelta(t, 0.5, Alignment(350, 80), 1e-9)
	assert.InDelta(t, 0.9, Alignment(355, 13), 1e-9)
}

func TestScoreCandidates(t *testing.T) {
	tun := DefaultTunables()
	f := campusFixture()
	stops, _ := f.StopsByDirection(context.Background(), 1, model.DirectionOutbound)
	here := model.Point{Lat: -11.9995, Lng: -77.000}
	history := []model.Position{pos(-12.0000, -77.000, fixtureNow)}

	candidates := ScoreCandidates(here, 0, true, stops, history, tun)
	// O4 is about 608 m away and never becomes a candidate
	require.Len(t, candidates, 3)

	assert.Equal(t, "O2", candidates[0].Stop.Name)
	assert.InDelta(t, 0.73, candidates[0].Score, 1e-9)
	assert.InDelta(t, 1.0, candidates[0].Alignment, 1e-9)
	assert.False(t, candidates[0].Passed)

	assert.Equal(t, "O3", candidates[1].Stop.Name)
	assert.Equal(t, "O1", candidates[2].Stop.Name)
	assert.True(t, candidates[2].Passed)
	assert.Zero(t, candidates[2].Score)

	for _, c := range candidates {
		assert.LessOrEqual(t, c.Distance, tun.CandidateRadius)
		assert.GreaterOrEqual(t, c.Score, 0.0)
	}
}

func TestScoreCandidatesNeverPrefersPassedStop(t *testing.T) {
	tun := DefaultTunables()
	// a passed stop right here and an unpassed one 450 m away, pointing backwards
	stops := []model.Stop{
		{ID: 1, Name: "here", Lat: 0, Lng: 0},
		{ID: 2, Name: "far", Lat: -0.00407, Lng: 0},
	}
	history := []model.Position{pos(0, 0, fixtureNow)}
	candidates := ScoreCandidates(model.Point{}, 0, true, stops, history, tun)
	require.Len(t, candidates, 2)
	assert.Equal(t, "far", candidates[0].Stop.Name)
}

func TestScoreCandidatesStableTies(t *testing.T) {
	tun := DefaultTunables()
	stops := []model.Stop{
		{ID: 10, Name: "first", Lat: 0.0001, Lng: 0},
		{ID: 11, Name: "second", Lat: 0, Lng: 0.0001},
		{ID: 12, Name: "third", Lat: -0.0001, Lng: 0},
	}
	// no heading: every alignment is neutral and every stop is within 100 m
	candidates := ScoreCandidates(model.Point{}, 0, false, stops, nil, tun)
	require.Len(t, candidates, 3)
	for i, want := range []uint{10, 11, 12} {
		assert.Equal(t, want, candidates[i].Stop.ID)
		assert.InDelta(t, 0.5, candidates[i].Alignment, 1e-9)
		assert.InDelta(t, 0.61, candidates[i].Score, 1e-9)
	}
}

func TestNearestStop(t *testing.T) {
	f := campusFixture()
	stop, d, ok := NearestStop(model.Point{Lat: -11.9961, Lng: -77.0001}, f.stops)
	require.True(t, ok)
	assert.Equal(t, "O3", stop.Name)
	assert.InDelta(t, 15.5, d, 0.1)

	_, _, ok = NearestStop(model.Point{}, nil)
	assert.False(t, ok)
}

func TestEngineNextStop(t *testing.T) {
	f := campusFixture()
	e := newFixtureEngine(f)
	ctx := context.Background()

	t.Run("scored selection skips the stop just passed", func(t *testing.T) {
		next, err := e.NextStop(ctx, f.buses[1])
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "O2", next.Stop.Name)
		assert.Equal(t, MethodScored, next.Method)
		assert.InDelta(t, 165.9, next.Distance, 0.1)
	})

	t.Run("inbound bus", func(t *testing.T) {
		next, err := e.NextStop(ctx, f.buses[3])
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "I2", next.Stop.Name)
	})

	t.Run("single fix falls back to nearest stop", func(t *testing.T) {
		next, err := e.NextStop(ctx, f.buses[2])
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "O3", next.Stop.Name)
		assert.Equal(t, MethodNearest, next.Method)
	})

	t.Run("unassigned bus has no next stop", func(t *testing.T) {
		next, err := e.NextStop(ctx, f.buses[4])
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("no candidate within radius falls back", func(t *testing.T) {
		g := campusFixture()
		g.addBus(9, uintPtr(1))
		g.addPosition(9, -11.9890, -77.000, fixtureNow.Add(-20*time.Second))
		g.addPosition(9, -11.9880, -77.000, fixtureNow)
		next, err := newFixtureEngine(g).NextStop(ctx, g.buses[9])
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "O4", next.Stop.Name)
		assert.Equal(t, MethodNearest, next.Method)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		g := campusFixture()
		g.failAll = errors.New("boom")
		_, err := newFixtureEngine(g).NextStop(ctx, g.buses[1])
		assert.Error(t, err)
	})
}
