// Package feed renders live bus status as a GTFS-realtime VehiclePositions
// feed.
package feed

import (
	"strconv"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"bus-tracker/algo"
	"bus-tracker/model"
)

const gtfsVersion = "2.0"

// ContentType is what the feed endpoint answers with.
const ContentType = "application/x-protobuf"

// VehiclePositions builds a full-dataset feed with one entity per bus
// that has a current position.
func VehiclePositions(statuses []algo.BusStatus, at time.Time) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(at.Unix())),
		},
	}
	for i := range statuses {
		if e := entity(&statuses[i]); e != nil {
			msg.Entity = append(msg.Entity, e)
		}
	}
	return msg
}

// Encode marshals the feed to the protobuf wire format.
func Encode(statuses []algo.BusStatus, at time.Time) ([]byte, error) {
	return proto.Marshal(VehiclePositions(statuses, at))
}

func entity(st *algo.BusStatus) *gtfs.FeedEntity {
	if st.Position == nil {
		return nil
	}
	id := strconv.FormatUint(uint64(st.Bus.ID), 10)

	vp := &gtfs.VehiclePosition{
		Vehicle: &gtfs.VehicleDescriptor{
			Id:    proto.String(id),
			Label: proto.String(st.Bus.Name),
		},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(st.Position.Lat)),
			Longitude: proto.Float32(float32(st.Position.Lng)),
		},
		Timestamp: proto.Uint64(uint64(st.Position.RecordedAt.Unix())),
	}
	// Heading is a planar angle; only the compass bearing is GTFS-rt safe.
	if st.Bearing != nil {
		vp.Position.Bearing = proto.Float32(float32(*st.Bearing))
	}
	if st.Velocity != nil {
		vp.Position.Speed = proto.Float32(float32(*st.Velocity))
	}
	if st.Bus.RouteID != nil {
		vp.Trip = &gtfs.TripDescriptor{
			RouteId: proto.String(strconv.FormatUint(uint64(*st.Bus.RouteID), 10)),
		}
		if d, ok := directionID(st.Direction); ok {
			vp.Trip.DirectionId = proto.Uint32(d)
		}
	}
	if st.NextStop != nil {
		vp.StopId = proto.String(strconv.FormatUint(uint64(st.NextStop.Stop.ID), 10))
		vp.CurrentStopSequence = proto.Uint32(uint32(st.NextStop.Stop.Order))
		vp.CurrentStatus = gtfs.VehiclePosition_IN_TRANSIT_TO.Enum()
	}

	return &gtfs.FeedEntity{Id: proto.String(id), Vehicle: vp}
}

func directionID(d model.Direction) (uint32, bool) {
	switch d {
	case model.DirectionOutbound:
		return 0, true
	case model.DirectionInbound:
		return 1, true
	}
	return 0, false
}
