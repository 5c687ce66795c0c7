//go:build !linux

package bluetooth

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/proximity"
)

// ErrHCIUnsupported is returned on hosts without raw HCI sockets.
var ErrHCIUnsupported = errors.New("hci backend requires linux")

// HCIRadio is only available on linux.
type HCIRadio struct{}

// NewHCIRadio always fails off linux; use the tinygo backend instead.
func NewHCIRadio(*zap.Logger) (*HCIRadio, error) {
	return nil, ErrHCIUnsupported
}

func (*HCIRadio) BeginAdvertising(context.Context, []byte, proximity.TxParameters) error {
	return ErrHCIUnsupported
}
func (*HCIRadio) EndAdvertising(context.Context) error { return nil }
func (*HCIRadio) BeginScanning(proximity.ScanHandler) error { return ErrHCIUnsupported }
func (*HCIRadio) EndScanning() error { return nil }
func (*HCIRadio) Close() error { return nil }
