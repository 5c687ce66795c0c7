package radar

import (
	"math"

	"proximity-radar.klederson.com/internal/config"
)

// RelativeBearing returns where a peer facing peerHeading sits on a display
// oriented to ownHeading, in degrees [0, 360). Non-finite input yields 0.
func RelativeBearing(ownHeading, peerHeading float64) float64 {
	d := peerHeading - ownHeading
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	b := math.Mod(math.Mod(d, 360)+360, 360)
	if b >= 360 {
		b = 0
	}
	return b
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// CellDistance computes the distance from a cell to the radar center,
// accounting for terminal aspect ratio.
func CellDistance(col, row, centerX, centerY int) float64 {
	dx := float64(col - centerX)
	dy := float64(row-centerY) / config.AspectRatio
	return math.Sqrt(dx*dx + dy*dy)
}

// CellAngle computes the angle from center to a cell.
// Returns radians in [0, 2π), where 0=north, increasing clockwise.
func CellAngle(col, row, centerX, centerY int) float64 {
	dx := float64(col - centerX)
	dy := float64(row-centerY) / config.AspectRatio
	return NormalizeAngle(math.Atan2(dx, -dy))
}

// RingChar returns the character drawn for a ring cell at the given angle.
func RingChar(angle float64) rune {
	switch int(math.Round(NormalizeAngle(angle)/(math.Pi/4))) % 8 {
	case 0, 4:
		return '-'
	case 1, 5:
		return '/'
	case 2, 6:
		return '|'
	default:
		return '\\'
	}
}

// NormalizeAngle wraps an angle to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the shortest angular distance between two angles.
// Result is in [0, π].
func AngleDiff(a, b float64) float64 {
	d := math.Abs(NormalizeAngle(a) - NormalizeAngle(b))
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// MetersToRadius converts distance in meters to radar cells. Unknown
// distances (negative) are drawn on the outer ring.
func MetersToRadius(meters, maxRange, radarRadius float64) float64 {
	if meters < 0 || meters > maxRange {
		return radarRadius
	}
	return (meters / maxRange) * radarRadius
}
