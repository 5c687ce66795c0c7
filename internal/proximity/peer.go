// Package proximity implements the discovery engine: the advertisement frame
// codec, RSSI distance estimation, the peer registry and the coordinator that
// owns the shared radio.
package proximity

import (
	"encoding/json"
	"time"
)

// Identity is the local device identity placed on air.
// ID never changes once created; Nickname may change and is re-broadcast.
type Identity struct {
	Nickname string `toml:"nickname" json:"nickname"`
	ID       string `toml:"id" json:"id"`
}

// Heading is a compass heading in whole degrees [0, 360).
// The zero value means no heading.
type Heading struct {
	Degrees int
	Valid   bool
}

// HeadingOf returns a valid heading normalized into [0, 360).
func HeadingOf(deg int) Heading {
	return Heading{Degrees: NormalizeDegrees(deg), Valid: true}
}

// NormalizeDegrees wraps any integer angle into [0, 360).
func NormalizeDegrees(deg int) int {
	return ((deg % 360) + 360) % 360
}

// MarshalJSON encodes an absent heading as null.
func (h Heading) MarshalJSON() ([]byte, error) {
	if !h.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(h.Degrees)
}

// UnmarshalJSON accepts null or a number.
func (h *Heading) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*h = Heading{}
		return nil
	}
	var deg int
	if err := json.Unmarshal(b, &deg); err != nil {
		return err
	}
	*h = HeadingOf(deg)
	return nil
}

// DecodedPeer is one received advertisement turned into structured fields.
type DecodedPeer struct {
	Nickname       string    `json:"nickname"`
	ID             string    `json:"id"`
	Heading        Heading   `json:"heading"`
	RawFrame       string    `json:"raw_frame"`
	SignalStrength int       `json:"rssi"`
	DistanceMeters float64   `json:"distance_m"`
	LastSeen       time.Time `json:"last_seen"`
	DeviceID       string    `json:"device_id,omitempty"` // radio address, informational only
}

// DisplayName returns the nickname or "[unnamed]" if empty.
func (p *DecodedPeer) DisplayName() string {
	if p.Nickname == "" {
		return "[unnamed]"
	}
	return p.Nickname
}
