package routing

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"bus-tracker/model"
	"bus-tracker/utils"
)

// SegmentSource looks up custom segments of one route direction.
type SegmentSource interface {
	Segments(ctx context.Context, routeID uint, dir model.Direction) ([]model.PathSegment, error)
}

// Builder assembles the drawn path of a route direction.
type Builder struct {
	provider Provider
	segments SegmentSource
}

func NewBuilder(p Provider, segments SegmentSource) *Builder {
	if p == nil {
		p = NoopProvider{}
	}
	return &Builder{provider: p, segments: segments}
}

// Splice joins lead-in, provider path and lead-out in that order.
func Splice(leadIn, provided, leadOut []model.Point) []model.Point {
	out := make([]model.Point, 0, len(leadIn)+len(provided)+len(leadOut))
	out = append(out, leadIn...)
	out = append(out, provided...)
	return append(out, leadOut...)
}

// Path routes through stops (already in traversal order) and splices the
// custom segments of the direction around the result. A provider failure
// is logged and leaves the provider part empty; only a segment lookup
// failure is returned as an error.
func (b *Builder) Path(ctx context.Context, routeID uint, dir model.Direction, stops []model.Stop) ([]model.Point, error) {
	segs, err := b.segments.Segments(ctx, routeID, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}

	var leadIn, leadOut []model.Point
	for _, s := range segs {
		points, err := utils.DecodePath(s.Polyline)
		if err != nil {
			log.WithFields(log.Fields{"route_id": routeID, "segment_id": s.ID}).WithError(err).Warn("skipping unreadable segment")
			continue
		}
		switch s.Role {
		case model.RoleLeadIn:
			leadIn = append(leadIn, points...)
		case model.RoleLeadOut:
			leadOut = append(leadOut, points...)
		}
	}

	waypoints := make([]model.Point, len(stops))
	for i, s := range stops {
		waypoints[i] = s.Point()
	}

	var provided []model.Point
	if len(waypoints) >= 2 {
		provided, err = b.provider.Route(ctx, waypoints)
		if err != nil {
			log.WithFields(log.Fields{
				"route_id":  routeID,
				"direction": dir,
				"provider":  b.provider.Name(),
			}).WithError(err).Warn("routing provider failed, using custom segments only")
			provided = nil
		}
	}

	return Splice(leadIn, provided, leadOut), nil
}
