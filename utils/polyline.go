package utils

import (
	"fmt"

	"github.com/twpayne/go-polyline"

	"bus-tracker/model"
)

// segmentCodec stores custom segments with six decimals (about 0.1 m), so
// hand-authored campus coordinates survive seeding unchanged. Routing
// engines answer with the standard five-decimal polyline instead.
var segmentCodec = polyline.Codec{Dim: 2, Scale: 1e6}

// EncodePath encodes points as a precision-6 polyline.
func EncodePath(points []model.Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(segmentCodec.EncodeCoords(nil, coords))
}

// DecodePath reverses EncodePath.
func DecodePath(encoded string) ([]model.Point, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, rest, err := segmentCodec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}
	points := make([]model.Point, len(coords))
	for i, c := range coords {
		points[i] = model.Point{Lat: c[0], Lng: c[1]}
	}
	return points, nil
}
