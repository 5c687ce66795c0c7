package app

import (
	"time"

	"proximity-radar.klederson.com/internal/proximity"
)

// TickMsg triggers a frame update for animation.
type TickMsg time.Time

// EvictMsg triggers peer expiry.
type EvictMsg time.Time

// PeerEventMsg carries one event from the coordinator stream.
type PeerEventMsg proximity.PeerEvent

// StreamClosedMsg is sent once the coordinator closed the stream.
type StreamClosedMsg struct{}

// ErrorMsg reports a failure from a background command.
type ErrorMsg struct {
	Err error
}

// RestartedMsg reports that discovery was started over.
type RestartedMsg struct{}
