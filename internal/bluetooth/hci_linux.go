//go:build linux

package bluetooth

import (
	"context"
	"sync"
	"time"

	"github.com/currantlabs/ble"
	"github.com/currantlabs/ble/linux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/proximity"
)

// advSettle is how long BeginAdvertising waits for the HCI command to fail
// before reporting the advertisement as started.
const advSettle = 100 * time.Millisecond

// HCIRadio talks to the controller over a raw HCI socket. It needs
// CAP_NET_ADMIN and an adapter not claimed by bluetoothd.
type HCIRadio struct {
	dev *linux.Device
	log *zap.Logger

	mu       sync.Mutex
	stopAdv  context.CancelFunc
	advDone  chan error
	stopScan context.CancelFunc
	scanDone chan struct{}
}

// NewHCIRadio opens the default HCI device.
func NewHCIRadio(log *zap.Logger) (*HCIRadio, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, errors.Wrap(err, "open hci device")
	}
	return &HCIRadio{dev: dev, log: log}, nil
}

// BeginAdvertising sets the manufacturer data and starts advertising.
func (r *HCIRadio) BeginAdvertising(ctx context.Context, frame []byte, params proximity.TxParameters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopAdv != nil {
		return nil
	}

	advCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	payload := append([]byte(nil), frame...)
	go func() {
		done <- r.dev.AdvertiseMfgData(advCtx, params.CompanyID, payload)
	}()

	t := time.NewTimer(advSettle)
	defer t.Stop()
	select {
	case err := <-done:
		cancel()
		return errors.Wrap(err, "advertise manufacturer data")
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case <-t.C:
	}
	r.stopAdv, r.advDone = cancel, done
	r.log.Debug("hci advertising", zap.ByteString("frame", payload), zap.Uint16("company_id", params.CompanyID))
	return nil
}

// EndAdvertising stops advertising and waits for the controller to confirm.
func (r *HCIRadio) EndAdvertising(context.Context) error {
	r.mu.Lock()
	cancel, done := r.stopAdv, r.advDone
	r.stopAdv, r.advDone = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "stop advertising")
	}
	return nil
}

// BeginScanning scans with duplicates allowed so RSSI keeps updating.
// Manufacturer data arrives with the company id still in front.
func (r *HCIRadio) BeginScanning(h proximity.ScanHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopScan != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.stopScan, r.scanDone = cancel, done
	go func() {
		defer close(done)
		err := r.dev.Scan(ctx, true, func(a ble.Advertisement) {
			md := a.ManufacturerData()
			if len(md) == 0 {
				return
			}
			h(proximity.ScanResult{
				DeviceID:         a.Address().String(),
				ManufacturerData: append([]byte(nil), md...),
				RSSI:             a.RSSI(),
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			h(proximity.ScanResult{Err: errors.Wrap(err, "hci scan")})
		}
	}()
	return nil
}

// EndScanning stops the scan and waits for it to wind down.
func (r *HCIRadio) EndScanning() error {
	r.mu.Lock()
	cancel, done := r.stopScan, r.scanDone
	r.stopScan, r.scanDone = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Close releases the HCI socket.
func (r *HCIRadio) Close() error {
	_ = r.EndAdvertising(context.Background())
	_ = r.EndScanning()
	return errors.Wrap(r.dev.Stop(), "close hci device")
}
