package proximity

import (
	"context"
	"time"
)

// TxParameters describe how the transmitter should place the frame on air.
type TxParameters struct {
	CompanyID   uint16        // manufacturer data company identifier
	Interval    time.Duration // advertising interval, zero lets the stack choose
	Connectable bool
}

// Transmitter is the radio-transmit collaborator. Any error from
// BeginAdvertising is treated as retryable.
type Transmitter interface {
	BeginAdvertising(ctx context.Context, frame []byte, params TxParameters) error
	EndAdvertising(ctx context.Context) error
}

// ScanResult is one advertisement (or a scan failure) reported by a Scanner.
type ScanResult struct {
	DeviceID         string
	ManufacturerData []byte
	RSSI             int
	Err              error
}

// ScanHandler receives scan results. It may be called from any goroutine.
type ScanHandler func(ScanResult)

// Scanner is the radio-scan collaborator. Scan errors are delivered through
// the handler and do not end the scan.
type Scanner interface {
	BeginScanning(handler ScanHandler) error
	EndScanning() error
}

// Radio is the single shared radio: it advertises or scans.
type Radio interface {
	Transmitter
	Scanner
}

// HeadingStatus reports whether a heading source has a reading.
type HeadingStatus int

const (
	HeadingPending HeadingStatus = iota
	HeadingAvailable
	HeadingUnsupported
)

// HeadingSource is the compass collaborator.
type HeadingSource interface {
	CurrentHeading() (degrees int, status HeadingStatus)
}

// IdentitySource provides the local identity at the start of each cycle.
type IdentitySource interface {
	Identity() (Identity, error)
}
