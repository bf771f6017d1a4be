package feed

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"bus-tracker/algo"
	"bus-tracker/model"
	"bus-tracker/utils"
)

func TestVehiclePositions(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	route := uint(3)
	heading, bearing, speed := 12.5, 45.0, 6.0

	statuses := []algo.BusStatus{
		{
			Bus:       model.Bus{ID: 7, Name: "Bus 7", RouteID: &route},
			Position:  &model.Position{Lat: -12.05, Lng: -77.08, RecordedAt: at.Add(-10 * time.Second)},
			Heading:   &heading,
			Bearing:   &bearing,
			Velocity:  &speed,
			Direction: model.DirectionInbound,
			NextStop:  &algo.NextStop{Stop: model.Stop{ID: 42, Order: 4}},
		},
		{Bus: model.Bus{ID: 8, Name: "parked"}},
		{
			Bus:      model.Bus{ID: 9, Name: "Bus 9"},
			Position: &model.Position{Lat: -12.0, Lng: -77.0, RecordedAt: at},
		},
	}

	raw, err := Encode(statuses, at)
	require.NoError(t, err)

	var msg gtfs.FeedMessage
	require.NoError(t, proto.Unmarshal(raw, &msg))
	assert.Equal(t, "2.0", msg.GetHeader().GetGtfsRealtimeVersion())
	assert.Equal(t, gtfs.FeedHeader_FULL_DATASET, msg.GetHeader().GetIncrementality())
	assert.Equal(t, uint64(at.Unix()), msg.GetHeader().GetTimestamp())
	require.Len(t, msg.GetEntity(), 2)

	vp := msg.GetEntity()[0].GetVehicle()
	assert.Equal(t, "7", msg.GetEntity()[0].GetId())
	assert.Equal(t, "Bus 7", vp.GetVehicle().GetLabel())
	assert.InDelta(t, -12.05, vp.GetPosition().GetLatitude(), 1e-5)
	assert.InDelta(t, 45.0, vp.GetPosition().GetBearing(), 1e-5)
	assert.InDelta(t, 6.0, vp.GetPosition().GetSpeed(), 1e-5)
	assert.Equal(t, "3", vp.GetTrip().GetRouteId())
	assert.Equal(t, uint32(1), vp.GetTrip().GetDirectionId())
	assert.Equal(t, "42", vp.GetStopId())
	assert.Equal(t, uint32(4), vp.GetCurrentStopSequence())
	assert.Equal(t, gtfs.VehiclePosition_IN_TRANSIT_TO, vp.GetCurrentStatus())

	bare := msg.GetEntity()[1].GetVehicle()
	assert.Nil(t, bare.GetTrip())
	assert.Nil(t, bare.Position.Bearing)
	assert.Empty(t, bare.GetStopId())
}

func TestVehiclePositionsBearingAtHighLatitude(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	from := model.Point{Lat: 60.000, Lng: 10.000}
	to := model.Point{Lat: 60.001, Lng: 10.002}
	heading := utils.PlanarAngle(from, to)
	bearing := utils.InitialBearing(from, to)

	msg := VehiclePositions([]algo.BusStatus{{
		Bus:      model.Bus{ID: 1, Name: "Bus 1"},
		Position: &model.Position{Lat: to.Lat, Lng: to.Lng, RecordedAt: at},
		Heading:  &heading,
		Bearing:  &bearing,
	}}, at)

	require.Len(t, msg.GetEntity(), 1)
	got := msg.GetEntity()[0].GetVehicle().GetPosition().GetBearing()
	assert.InDelta(t, 45.0, got, 0.5)
	assert.Greater(t, heading-float64(got), 15.0)
}

func TestVehiclePositionsHeadingWithoutBearing(t *testing.T) {
	heading := 90.0
	msg := VehiclePositions([]algo.BusStatus{{
		Bus:      model.Bus{ID: 1},
		Position: &model.Position{Lat: 1, Lng: 1},
		Heading:  &heading,
	}}, time.Unix(0, 0))

	require.Len(t, msg.GetEntity(), 1)
	assert.Nil(t, msg.GetEntity()[0].GetVehicle().GetPosition().Bearing)
}

func TestVehiclePositionsEmpty(t *testing.T) {
	msg := VehiclePositions(nil, time.Unix(0, 0))
	assert.Empty(t, msg.GetEntity())
	assert.NotNil(t, msg.GetHeader())
}
