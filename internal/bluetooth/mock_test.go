package bluetooth

import (
	"context"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"

	"proximity-radar.klederson.com/internal/proximity"
)

func TestMockRadioStepDecodes(t *testing.T) {
	codec := proximity.NewCodec(proximity.DefaultFrameConfig())
	m := NewMockRadio(6, codec, 0x0059, WithSeed(7))

	decoded := 0
	for _, res := range m.Step(time.Second) {
		p, err := codec.Decode(res.ManufacturerData, res.RSSI)
		if err != nil {
			continue
		}
		decoded++
		assert.Check(t, p.Nickname != "")
		assert.Check(t, is.Len(p.ID, 8))
		assert.Check(t, p.DistanceMeters > 0)
	}
	assert.Check(t, decoded >= 5, "decoded %d", decoded)
}

func TestMockRadioAdvertising(t *testing.T) {
	m := NewMockRadio(0, proximity.NewCodec(proximity.FrameConfig{}), 0x0059)
	ctx := context.Background()

	assert.NilError(t, m.BeginAdvertising(ctx, []byte("MM|me|abc|90"), proximity.TxParameters{}))
	assert.Equal(t, string(m.Advertising()), "MM|me|abc|90")

	assert.NilError(t, m.EndAdvertising(ctx))
	assert.Check(t, is.Len(m.Advertising(), 0))
}

func TestMockRadioFailRate(t *testing.T) {
	m := NewMockRadio(0, proximity.NewCodec(proximity.FrameConfig{}), 0x0059, WithFailRate(1))
	err := m.BeginAdvertising(context.Background(), []byte("MM|me|abc"), proximity.TxParameters{})
	assert.ErrorContains(t, err, "advertiser busy")
}

func TestMockRadioScanLoop(t *testing.T) {
	m := NewMockRadio(3, proximity.NewCodec(proximity.FrameConfig{}), 0x0059, WithSeed(1), WithTick(5*time.Millisecond))

	var mu sync.Mutex
	heard := 0
	assert.NilError(t, m.BeginScanning(func(proximity.ScanResult) {
		mu.Lock()
		heard++
		mu.Unlock()
	}))
	// a second call is a no-op
	assert.NilError(t, m.BeginScanning(func(proximity.ScanResult) {}))

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		mu.Lock()
		defer mu.Unlock()
		if heard >= 6 {
			return poll.Success()
		}
		return poll.Continue("heard %d results", heard)
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(5*time.Millisecond))

	assert.NilError(t, m.EndScanning())
	assert.NilError(t, m.EndScanning())
}

func TestDescribeCompany(t *testing.T) {
	assert.Equal(t, DescribeCompany(0x0059), "0x0059 (Nordic)")
	assert.Equal(t, DescribeCompany(0x1234), "0x1234")
}
