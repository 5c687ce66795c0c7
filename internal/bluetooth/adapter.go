package bluetooth

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"proximity-radar.klederson.com/internal/proximity"
)

// scanStopWait bounds how long EndScanning waits for the scan loop to exit.
const scanStopWait = 2 * time.Second

// Adapter drives the host adapter through tinygo's bluetooth package
// (BlueZ over D-Bus on Linux, CoreBluetooth on macOS, WinRT on Windows).
type Adapter struct {
	adapter *bluetooth.Adapter
	log     *zap.Logger

	mu       sync.Mutex
	enabled  bool
	adv      *bluetooth.Advertisement
	scanDone chan struct{}
}

// NewAdapter wraps the default adapter.
func NewAdapter(log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{adapter: bluetooth.DefaultAdapter, log: log}
}

func (a *Adapter) enableLocked() error {
	if a.enabled {
		return nil
	}
	if err := a.adapter.Enable(); err != nil {
		return errors.Wrap(err, "enable BLE adapter (try running with sudo or setcap cap_net_admin+ep)")
	}
	a.enabled = true
	return nil
}

// BeginAdvertising places frame in the manufacturer data of a
// non-connectable advertisement.
func (a *Adapter) BeginAdvertising(_ context.Context, frame []byte, params proximity.TxParameters) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enableLocked(); err != nil {
		return err
	}

	advType := bluetooth.AdvertisingTypeNonConnInd
	if params.Connectable {
		advType = bluetooth.AdvertisingTypeInd
	}
	opts := bluetooth.AdvertisementOptions{
		AdvertisementType: advType,
		ManufacturerData: []bluetooth.ManufacturerDataElement{
			{CompanyID: params.CompanyID, Data: append([]byte(nil), frame...)},
		},
	}
	if params.Interval > 0 {
		opts.Interval = bluetooth.NewDuration(params.Interval)
	}

	adv := a.adapter.DefaultAdvertisement()
	if err := adv.Configure(opts); err != nil {
		return errors.Wrap(err, "configure advertisement")
	}
	if err := adv.Start(); err != nil {
		return errors.Wrap(err, "start advertisement")
	}
	a.adv = adv
	a.log.Debug("advertising", zap.ByteString("frame", frame), zap.Uint16("company_id", params.CompanyID))
	return nil
}

// EndAdvertising stops the running advertisement, if any.
func (a *Adapter) EndAdvertising(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adv == nil {
		return nil
	}
	err := a.adv.Stop()
	a.adv = nil
	return errors.Wrap(err, "stop advertisement")
}

// BeginScanning starts a scan loop in the background. Every manufacturer
// data element is delivered with its company id prepended in little-endian
// order, the way it appears in the advertising PDU.
func (a *Adapter) BeginScanning(h proximity.ScanHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scanDone != nil {
		return nil
	}
	if err := a.enableLocked(); err != nil {
		return err
	}

	done := make(chan struct{})
	a.scanDone = done
	go func() {
		defer close(done)
		err := a.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			addr := r.Address.String()
			for _, el := range r.ManufacturerData() {
				h(proximity.ScanResult{
					DeviceID:         addr,
					ManufacturerData: withCompanyID(el.CompanyID, el.Data),
					RSSI:             int(r.RSSI),
				})
			}
		})
		if err != nil {
			h(proximity.ScanResult{Err: errors.Wrap(err, "scan")})
		}
	}()
	return nil
}

// EndScanning stops the scan loop and waits briefly for it to exit.
func (a *Adapter) EndScanning() error {
	a.mu.Lock()
	done := a.scanDone
	a.scanDone = nil
	a.mu.Unlock()
	if done == nil {
		return nil
	}

	if err := a.adapter.StopScan(); err != nil {
		return errors.Wrap(err, "stop scan")
	}
	select {
	case <-done:
	case <-time.After(scanStopWait):
		a.log.Warn("scan loop did not exit after StopScan")
	}
	return nil
}

func withCompanyID(id uint16, data []byte) []byte {
	b := make([]byte, 2+len(data))
	binary.LittleEndian.PutUint16(b, id)
	copy(b[2:], data)
	return b
}
