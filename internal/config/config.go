package config

import "time"

const (
	// Frame defaults
	FrameTag       = "MM"
	FrameDelimiter = '|'
	FrameBudget    = 26     // manufacturer data bytes available to the frame
	CompanyID      = 0x0059 // manufacturer data company identifier
	MeasuredPower  = -59.0  // RSSI at 1 meter (dBm)

	// Radar display
	MaxRange      = 30.0 // Maximum range in meters
	AspectRatio   = 0.5  // Terminal char aspect correction (chars are ~2:1 tall)
	RingCount     = 4    // Number of concentric rings
	SweepSpeedRPM = 30   // Sweep rotations per minute (1 rotation per 2 seconds)
	SweepTrailDeg = 60.0 // Sweep trail angle in degrees
	TargetFPS     = 30   // Target frames per second

	// Peer display
	PeerStaleAfter  = 30 * time.Second // Dim peers not heard from for this long
	EvictInterval   = 5 * time.Second  // How often expiry runs when a ttl is set
	RSSIHistorySize = 60               // Samples kept per peer for the sparkline
	SightingEvery   = 30 * time.Second // Journal update throttle per peer

	// Demo mode
	DemoPeerMin = 4
	DemoPeerMax = 8

	// App
	AppName    = "PROXIMITY-RADAR"
	AppVersion = "0.3"
)
