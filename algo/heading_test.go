package algo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-tracker/model"
)

func TestAverageHeading(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		newestFirst []model.Position
		want        float64
		ok          bool
	}{
		{"single sample", []model.Position{pos(0, 0, t0)}, 0, false},
		{"moving north", []model.Position{pos(0.002, 0, t0), pos(0.001, 0, t0), pos(0, 0, t0)}, 0, true},
		{"moving east", []model.Position{pos(0, 0.001, t0), pos(0, 0, t0)}, 90, true},
		{"moving south", []model.Position{pos(0, 0, t0), pos(0.001, 0, t0)}, 180, true},
		{"moving west", []model.Position{pos(0, 0, t0), pos(0, 0.001, t0)}, 270, true},
		// 45° then 135° averages to 90°
		{"turning", []model.Position{pos(0, 0.002, t0), pos(0.001, 0.001, t0), pos(0, 0, t0)}, 90, true},
		// -10° and +10° around north average to 0° instead of 180°
		{"wraparound", []model.Position{
			pos(2, 0, t0),
			pos(1, 0.17632698, t0),
			pos(0, 0, t0),
		}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := AverageHeading(tt.newestFirst)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, h, 1e-3)
				assert.GreaterOrEqual(t, h, 0.0)
				assert.Less(t, h, 360.0)
			}
		})
	}
}

func TestEngineHeading(t *testing.T) {
	e := newFixtureEngine(campusFixture())
	ctx := context.Background()

	h, ok, err := e.Heading(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0, h, 1e-6)

	h, ok, err = e.Heading(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 180, h, 1e-6)

	_, ok, err = e.Heading(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
