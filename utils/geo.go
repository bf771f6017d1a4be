package utils

import (
	"math"

	"bus-tracker/model"
)

// WGS-84 ellipsoid parameters.
const (
	EarthRadius     = 6378137.0
	EarthFlattening = 1 / 298.257223563
	EarthMinorAxis  = (1 - EarthFlattening) * EarthRadius
	MeanEarthRadius = 6371008.8
)

const (
	vincentyMaxIter   = 200
	vincentyTolerance = 1e-12
)

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(r float64) float64 {
	return r * 180.0 / math.Pi
}

// Distance returns the geodesic distance in meters between two points on
// the WGS-84 ellipsoid. It falls back to HaversineDistance when Vincenty's
// iteration does not converge (nearly antipodal points).
func Distance(p1, p2 model.Point) float64 {
	if p1 == p2 {
		return 0
	}
	if d, ok := VincentyDistance(p1, p2); ok {
		return d
	}
	return HaversineDistance(p1, p2)
}

// VincentyDistance is the inverse Vincenty formula. ok is false when the
// iteration fails to converge.
func VincentyDistance(p1, p2 model.Point) (float64, bool) {
	a, b, f := EarthRadius, EarthMinorAxis, EarthFlattening

	L := DegreesToRadians(p2.Lng - p1.Lng)
	U1 := math.Atan((1 - f) * math.Tan(DegreesToRadians(p1.Lat)))
	U2 := math.Atan((1 - f) * math.Tan(DegreesToRadians(p2.Lat)))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cos2Alpha, cos2SigmaM float64
	converged := false
	for i := 0; i < vincentyMaxIter; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma = math.Sqrt((cosU2*sinLambda)*(cosU2*sinLambda) +
			(cosU1*sinU2-sinU1*cosU2*cosLambda)*(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			return 0, true
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		} else {
			// equatorial line
			cos2SigmaM = 0
		}
		C := f / 16 * cos2Alpha * (4 + f*(4-3*cos2Alpha))
		prev := lambda
		lambda = L + (1-C)*f*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return 0, false
	}

	uSq := cos2Alpha * (a*a - b*b) / (b * b)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return b * A * (sigma - deltaSigma), true
}

// HaversineDistance is the great-circle distance on a sphere of the mean
// Earth radius.
func HaversineDistance(p1, p2 model.Point) float64 {
	lat1 := DegreesToRadians(p1.Lat)
	lon1 := DegreesToRadians(p1.Lng)
	lat2 := DegreesToRadians(p2.Lat)
	lon2 := DegreesToRadians(p2.Lng)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return MeanEarthRadius * c
}

// PlanarAngle is the angle in degrees [0, 360) of the raw coordinate delta
// from -> to, measured as atan2(Δlng, Δlat). Movement heading and
// bearing-to-stop both use it, so only their difference is meaningful.
func PlanarAngle(from, to model.Point) float64 {
	return NormalizeDegrees(RadiansToDegrees(math.Atan2(to.Lng-from.Lng, to.Lat-from.Lat)))
}

// InitialBearing is the compass bearing in degrees [0, 360) of the great
// circle leaving from towards to, clockwise from true north.
func InitialBearing(from, to model.Point) float64 {
	lat1 := DegreesToRadians(from.Lat)
	lat2 := DegreesToRadians(to.Lat)
	dLon := DegreesToRadians(to.Lng - from.Lng)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeDegrees(RadiansToDegrees(math.Atan2(y, x)))
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// AngularDifference is the absolute difference of two angles wrapped to
// [0, 180].
func AngularDifference(a, b float64) float64 {
	d := math.Abs(NormalizeDegrees(a) - NormalizeDegrees(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}
