// Package units provides shared constants and conversions for angular quantities
package units

import "math"

// Unit constants
const (
	Degrees = "deg"
	Radians = "rad"
)

// ValidUnits contains all valid angular unit values
var ValidUnits = []string{Degrees, Radians}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// DegToRad converts degrees to radians
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// ConvertAngle converts an angle from degrees to the target units.
// Telemetry and configuration carry angles in degrees; the kinematic
// model works in radians.
func ConvertAngle(angleDeg float64, targetUnits string) float64 {
	switch targetUnits {
	case Radians:
		return DegToRad(angleDeg)
	case Degrees:
		return angleDeg
	default:
		return angleDeg // default to degrees if unknown unit
	}
}
