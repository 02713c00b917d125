// Package frames assembles the sensor's streaming subframes into complete
// point-cloud or object-tracking frames and maintains the statistics
// records carried on the same stream.
package frames

import "time"

// Kind identifies what a Frame carries.
type Kind int

const (
	// KindPointCloud frames carry Points.
	KindPointCloud Kind = iota

	// KindObjectTracking frames carry Objects.
	KindObjectTracking
)

func (k Kind) String() string {
	switch k {
	case KindPointCloud:
		return "point_cloud"
	case KindObjectTracking:
		return "object_tracking"
	default:
		return "unknown"
	}
}

// Point is a single radar return, converted into the configured distance
// units at parse time.
type Point struct {
	X         float64
	Y         float64
	Z         float64
	Intensity uint8
}

// Object is a tracked target with position, velocity and acceleration in
// the configured units.
type Object struct {
	TrackingID int8
	XPos       float64
	YPos       float64
	ZPos       float64
	XVel       float64
	YVel       float64
	ZVel       float64
	XAcc       float64
	YAcc       float64
	ZAcc       float64
}

// Frame is one complete capture: every subframe up to and including the
// end-of-frame marker. Immutable once published.
type Frame struct {
	ID         string
	Kind       Kind
	Points     []Point
	Objects    []Object
	CapturedAt time.Time
}
