// Package heading provides compass readings for the coordinator. Desktop
// hosts rarely carry a magnetometer, so headings come from a flag, a demo
// simulation, or nowhere at all.
package heading

import (
	"sync"
	"time"

	"proximity-radar.klederson.com/internal/proximity"
)

// Static reports a fixed heading, set from the command line or the UI.
type Static struct {
	mu  sync.RWMutex
	deg int
}

// NewStatic returns a source fixed at deg.
func NewStatic(deg int) *Static {
	return &Static{deg: proximity.NormalizeDegrees(deg)}
}

func (s *Static) CurrentHeading() (int, proximity.HeadingStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deg, proximity.HeadingAvailable
}

// Set changes the reported heading.
func (s *Static) Set(deg int) {
	s.mu.Lock()
	s.deg = proximity.NormalizeDegrees(deg)
	s.mu.Unlock()
}

// Rotate turns the heading by delta degrees and returns the new value.
func (s *Static) Rotate(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deg = proximity.NormalizeDegrees(s.deg + delta)
	return s.deg
}

// Unsupported is a host without a compass.
type Unsupported struct{}

func (Unsupported) CurrentHeading() (int, proximity.HeadingStatus) {
	return 0, proximity.HeadingUnsupported
}

// Simulated turns slowly, like someone walking around with the device.
// It reports pending until warmup has passed, as a real sensor does.
type Simulated struct {
	start  time.Time
	warmup time.Duration
	rpm    float64
	now    func() time.Time
}

// NewSimulated returns a source turning at rpm revolutions per minute.
func NewSimulated(rpm float64, warmup time.Duration) *Simulated {
	return &Simulated{start: time.Now(), warmup: warmup, rpm: rpm, now: time.Now}
}

func (s *Simulated) CurrentHeading() (int, proximity.HeadingStatus) {
	elapsed := s.now().Sub(s.start)
	if elapsed < s.warmup {
		return 0, proximity.HeadingPending
	}
	deg := int(elapsed.Minutes() * s.rpm * 360)
	return proximity.NormalizeDegrees(deg), proximity.HeadingAvailable
}

// Reading returns the current heading as a proximity.Heading, invalid when
// the source has nothing to report.
func Reading(src proximity.HeadingSource) proximity.Heading {
	if src == nil {
		return proximity.Heading{}
	}
	deg, status := src.CurrentHeading()
	if status != proximity.HeadingAvailable {
		return proximity.Heading{}
	}
	return proximity.HeadingOf(deg)
}
