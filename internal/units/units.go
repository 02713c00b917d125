// Package units converts the sensor's SI wire values into caller-selected
// units. The sensor reports all distances, speeds and accelerations in
// milli-SI fixed point; the driver divides those down to SI once at parse
// time and this package handles the final conversion into whatever units
// the application configured.
package units

import (
	"fmt"
	"math"
)

// Distance unit constants.
const (
	Millimetres = "mm"
	Centimetres = "cm"
	Metres      = "m"
	Kilometres  = "km"
	Inches      = "in"
	Feet        = "ft"
	Miles       = "mi"
)

// Speed unit constants.
const (
	MillimetresPerSecond = "mm/s"
	CentimetresPerSecond = "cm/s"
	MetresPerSecond      = "m/s"
	KilometresPerHour    = "km/h"
	InchesPerSecond      = "in/s"
	FeetPerSecond        = "ft/s"
	MilesPerHour         = "mi/h"
)

// Acceleration unit constants.
const (
	MillimetresPerSecondSquared = "mm/s^2"
	CentimetresPerSecondSquared = "cm/s^2"
	MetresPerSecondSquared      = "m/s^2"
	InchesPerSecondSquared      = "in/s^2"
	FeetPerSecondSquared        = "ft/s^2"
)

// Conversion factors from metres.
var distanceFactors = map[string]float64{
	Millimetres: 1000,
	Centimetres: 100,
	Metres:      1,
	Kilometres:  1.0 / 1000,
	Inches:      39.3701,
	Feet:        3.28084,
	Miles:       1.0 / 1609.344,
}

// Conversion factors from metres per second.
var speedFactors = map[string]float64{
	MillimetresPerSecond: 1000,
	CentimetresPerSecond: 100,
	MetresPerSecond:      1,
	KilometresPerHour:    3.6,
	InchesPerSecond:      39.3701,
	FeetPerSecond:        3.28084,
	MilesPerHour:         2.237,
}

// Conversion factors from metres per second squared.
var accelerationFactors = map[string]float64{
	MillimetresPerSecondSquared: 1000,
	CentimetresPerSecondSquared: 100,
	MetresPerSecondSquared:      1,
	InchesPerSecondSquared:      39.3701,
	FeetPerSecondSquared:        3.28084,
}

// ValidDistanceUnit reports whether unit is a recognised distance unit.
func ValidDistanceUnit(unit string) bool {
	_, ok := distanceFactors[unit]
	return ok
}

// ValidSpeedUnit reports whether unit is a recognised speed unit.
func ValidSpeedUnit(unit string) bool {
	_, ok := speedFactors[unit]
	return ok
}

// ValidAccelerationUnit reports whether unit is a recognised acceleration unit.
func ValidAccelerationUnit(unit string) bool {
	_, ok := accelerationFactors[unit]
	return ok
}

// DistanceFromSI converts a distance in metres to the given units.
func DistanceFromSI(unit string, metres float64) (float64, error) {
	factor, ok := distanceFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid distance unit %q", unit)
	}
	return roundSig(metres*factor, 4), nil
}

// DistanceToSI converts a distance in the given units to metres.
func DistanceToSI(unit string, distance float64) (float64, error) {
	factor, ok := distanceFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid distance unit %q", unit)
	}
	return roundSig(distance/factor, 4), nil
}

// SpeedFromSI converts a speed in metres per second to the given units.
func SpeedFromSI(unit string, mps float64) (float64, error) {
	factor, ok := speedFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid speed unit %q", unit)
	}
	return roundSig(mps*factor, 4), nil
}

// SpeedToSI converts a speed in the given units to metres per second.
func SpeedToSI(unit string, speed float64) (float64, error) {
	factor, ok := speedFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid speed unit %q", unit)
	}
	return roundSig(speed/factor, 4), nil
}

// AccelerationFromSI converts an acceleration in m/s^2 to the given units.
func AccelerationFromSI(unit string, mps2 float64) (float64, error) {
	factor, ok := accelerationFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid acceleration unit %q", unit)
	}
	return roundSig(mps2*factor, 4), nil
}

// AccelerationToSI converts an acceleration in the given units to m/s^2.
func AccelerationToSI(unit string, acceleration float64) (float64, error) {
	factor, ok := accelerationFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid acceleration unit %q", unit)
	}
	return roundSig(acceleration/factor, 4), nil
}

// roundSig rounds x to sig significant figures. The sensor reports
// millimetre-resolution fixed point, so anything past four figures is
// quantisation noise.
func roundSig(x float64, sig int) float64 {
	if x == 0 {
		return 0
	}
	magnitude := math.Pow(10, float64(sig)-math.Ceil(math.Log10(math.Abs(x))))
	return math.Round(x*magnitude) / magnitude
}
