package common

import "math"

// FullTurn is one revolution in radians.
const FullTurn = 2 * math.Pi

// NormalizeYaw wraps an angle into [0, 2π).
func NormalizeYaw(rad float64) float64 {
	if math.Abs(rad) >= FullTurn {
		rad = math.Mod(rad, FullTurn)
	}
	if rad < 0 {
		rad += FullTurn
	}
	// A tiny negative input rounds up to exactly 2π after the shift.
	if rad >= FullTurn {
		rad = 0
	}
	return rad
}

// AngleDiff returns the signed difference a-b wrapped into (-π, π].
func AngleDiff(a, b float64) float64 {
	d := NormalizeYaw(a - b)
	if d > math.Pi {
		d -= FullTurn
	}
	return d
}
