package radar

import (
	"math"
	"time"

	"proximity-radar.klederson.com/internal/config"
)

// Sweep manages the rotating sweep line state.
type Sweep struct {
	Angle     float64 // radians [0, 2π), 0 is the top of the scope
	StartTime time.Time
	RPM       float64
}

// NewSweep creates a sweep starting at the top of the scope.
func NewSweep() *Sweep {
	return &Sweep{StartTime: time.Now(), RPM: config.SweepSpeedRPM}
}

// Update advances the sweep angle based on elapsed time.
func (s *Sweep) Update() {
	s.UpdateAt(time.Now())
}

// UpdateAt advances the sweep to where it is at now.
func (s *Sweep) UpdateAt(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	s.Angle = NormalizeAngle(elapsed * s.RPM / 60 * 2 * math.Pi)
}

// Degrees returns the current sweep angle in degrees.
func (s *Sweep) Degrees() float64 {
	return s.Angle * 180 / math.Pi
}

// Intensity returns the glow [0, 1] for a cell angle trailing the sweep head.
// Cells outside the trail return 0.
func (s *Sweep) Intensity(cellAngle float64) float64 {
	diff := NormalizeAngle(s.Angle - cellAngle)
	trailRad := DegToRad(config.SweepTrailDeg)
	if diff > trailRad {
		return 0
	}
	return 1.0 - diff/trailRad
}
