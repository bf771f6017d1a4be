package algo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-tracker/model"
)

func TestClassifyDirection(t *testing.T) {
	f := campusFixture()
	out, _ := f.StopsByDirection(context.Background(), 1, model.DirectionOutbound)
	in, _ := f.StopsByDirection(context.Background(), 1, model.DirectionInbound)

	onOutbound := model.Point{Lat: -11.999, Lng: -77.000}
	onInbound := model.Point{Lat: -11.999, Lng: -76.997}

	tests := []struct {
		name    string
		samples []model.Point
		want    model.Direction
	}{
		{"single sample is unknown", []model.Point{onOutbound}, model.DirectionUnknown},
		{"all outbound", []model.Point{onOutbound, onOutbound, onOutbound}, model.DirectionOutbound},
		{"all inbound", []model.Point{onInbound, onInbound}, model.DirectionInbound},
		{"majority outbound", []model.Point{onOutbound, onInbound, onOutbound, onOutbound, onInbound}, model.DirectionOutbound},
		{"tied votes go inbound", []model.Point{onOutbound, onInbound}, model.DirectionInbound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDirection(tt.samples, out, in))
		})
	}
}

func TestClassifyDirectionEquidistantSamples(t *testing.T) {
	out := []model.Stop{{ID: 1, Lat: 0, Lng: -0.001, Direction: model.DirectionOutbound}}
	in := []model.Stop{{ID: 2, Lat: 0, Lng: 0.001, Direction: model.DirectionInbound}}
	halfway := model.Point{Lat: 0, Lng: 0}
	nearOut := model.Point{Lat: 0, Lng: -0.0009}

	// an equidistant sample counts as an inbound vote
	assert.Equal(t, model.DirectionInbound, ClassifyDirection([]model.Point{halfway, halfway, nearOut}, out, in))
	assert.Equal(t, model.DirectionInbound, ClassifyDirection([]model.Point{halfway, nearOut}, out, in))
	assert.Equal(t, model.DirectionInbound, ClassifyDirection([]model.Point{halfway, halfway}, out, in))
	assert.Equal(t, model.DirectionOutbound, ClassifyDirection([]model.Point{halfway, nearOut, nearOut}, out, in))
}

func TestClassifyDirectionEdgeLists(t *testing.T) {
	f := campusFixture()
	out, _ := f.StopsByDirection(context.Background(), 1, model.DirectionOutbound)
	samples := []model.Point{{Lat: -11.999, Lng: -76.997}, {Lat: -11.998, Lng: -76.997}}

	assert.Equal(t, model.DirectionUnknown, ClassifyDirection(samples, nil, nil))
	assert.Equal(t, model.DirectionOutbound, ClassifyDirection(samples, out, nil))
	assert.Equal(t, model.DirectionInbound, ClassifyDirection(samples, nil, out))
}

func TestClassifyDirectionSwappedLabels(t *testing.T) {
	f := campusFixture()
	out, _ := f.StopsByDirection(context.Background(), 1, model.DirectionOutbound)
	in, _ := f.StopsByDirection(context.Background(), 1, model.DirectionInbound)
	a := model.Point{Lat: -11.999, Lng: -77.000}
	b := model.Point{Lat: -11.999, Lng: -76.997}

	clear := []model.Point{a, a, b}
	assert.Equal(t, model.DirectionOutbound, ClassifyDirection(clear, out, in))
	assert.Equal(t, model.DirectionInbound, ClassifyDirection(clear, in, out))

	tied := []model.Point{a, b}
	assert.Equal(t, model.DirectionInbound, ClassifyDirection(tied, out, in))
	assert.Equal(t, model.DirectionInbound, ClassifyDirection(tied, in, out))

	// same input, same answer
	for i := 0; i < 5; i++ {
		assert.Equal(t, model.DirectionOutbound, ClassifyDirection(clear, out, in))
	}
}

func TestEngineDirection(t *testing.T) {
	f := campusFixture()
	e := newFixtureEngine(f)
	ctx := context.Background()

	tests := []struct {
		busID uint
		want  model.Direction
	}{
		{1, model.DirectionOutbound},
		{2, model.DirectionUnknown},
		{3, model.DirectionInbound},
		{4, model.DirectionUnknown},
	}
	for _, tt := range tests {
		dir, err := e.Direction(ctx, f.buses[tt.busID])
		require.NoError(t, err)
		assert.Equal(t, tt.want, dir, "bus %d", tt.busID)
	}
}
