package algo

import "time"

// Tunables holds every threshold and weight the engine uses. The defaults
// were picked empirically on a campus loop and are meant to be overridden
// per deployment.
type Tunables struct {
	// velocity
	VelocityWindow   time.Duration
	MinSegmentSpeed  float64 // m/s
	MaxSegmentSpeed  float64 // m/s
	MaxVelocity      float64 // m/s
	DefaultVelocity  float64 // m/s
	HeadingWindow    time.Duration
	HeadingSamples   int
	DirectionWindow  time.Duration
	DirectionSamples int

	// next stop
	CandidateRadius float64 // m
	PassedRadius    float64 // m
	PassedWindow    time.Duration
	DistanceWeight  float64
	AlignmentWeight float64
	OrderWeight     float64
	OrderBonus      float64
	PassedPenalty   float64
	UpcomingStops   int

	// eta
	NearSlowdownDistance float64 // m
	NearSlowdownFactor   float64
	MidSlowdownDistance  float64 // m
	MidSlowdownFactor    float64
	CongestionPerKm      float64 // s
	MinETAMinutes        float64
}

// DefaultTunables returns the stock configuration.
func DefaultTunables() Tunables {
	return Tunables{
		VelocityWindow:   2 * time.Minute,
		MinSegmentSpeed:  0.5,
		MaxSegmentSpeed:  20,
		MaxVelocity:      15,
		DefaultVelocity:  6.94,
		HeadingWindow:    3 * time.Minute,
		HeadingSamples:   5,
		DirectionWindow:  3 * time.Minute,
		DirectionSamples: 5,

		CandidateRadius: 500,
		PassedRadius:    50,
		PassedWindow:    10 * time.Minute,
		DistanceWeight:  0.4,
		AlignmentWeight: 0.4,
		OrderWeight:     0.1,
		OrderBonus:      0.1,
		PassedPenalty:   0.5,
		UpcomingStops:   3,

		NearSlowdownDistance: 500,
		NearSlowdownFactor:   0.7,
		MidSlowdownDistance:  1000,
		MidSlowdownFactor:    0.85,
		CongestionPerKm:      30,
		MinETAMinutes:        1.0,
	}
}
