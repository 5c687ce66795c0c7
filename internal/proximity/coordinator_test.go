package proximity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"
)

type fakeRadio struct {
	mu          sync.Mutex
	failFirst   int // BeginAdvertising fails this many times
	attempts    int
	frames      []string
	calls       []string
	advertising bool
	scanning    bool
	overlap     bool
	handler     ScanHandler
}

func (f *fakeRadio) BeginAdvertising(_ context.Context, frame []byte, params TxParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	f.calls = append(f.calls, "adv")
	if f.scanning {
		f.overlap = true
	}
	if f.attempts <= f.failFirst {
		return errors.New("advertiser unavailable")
	}
	f.advertising = true
	f.frames = append(f.frames, string(frame))
	return nil
}

func (f *fakeRadio) EndAdvertising(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "end-adv")
	f.advertising = false
	return nil
}

func (f *fakeRadio) BeginScanning(h ScanHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "scan")
	if f.advertising {
		f.overlap = true
	}
	f.scanning = true
	f.handler = h
	return nil
}

func (f *fakeRadio) EndScanning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "end-scan")
	f.scanning = false
	return nil
}

func (f *fakeRadio) emit(res ScanResult) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(res)
}

func (f *fakeRadio) snapshot() (calls, frames []string, overlap bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]string(nil), f.frames...), f.overlap
}

type fixedHeading struct {
	deg    int
	status HeadingStatus
}

func (h fixedHeading) CurrentHeading() (int, HeadingStatus) { return h.deg, h.status }

type countingIdentity struct {
	mu sync.Mutex
	n  int
}

func (c *countingIdentity) Identity() (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	nick := "first"
	if c.n > 1 {
		nick = "second"
	}
	return Identity{Nickname: nick, ID: "selfself-0000"}, nil
}

func fastConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxBroadcastAttempts: 3,
		RetryDelay:           time.Millisecond,
		HeadingPollAttempts:  3,
		HeadingPollInterval:  time.Millisecond,
		AdvertiseDuration:    time.Millisecond,
		StepDelay:            time.Millisecond,
		StreamBuffer:         16,
		Tx:                   TxParameters{CompanyID: 0x0059},
	}
}

func newTestCoordinator(t *testing.T, radio Radio, cfg CoordinatorConfig) *Coordinator {
	c := NewCoordinator(radio, newTestCodec(), NewPeerRegistry(), cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var self = Identity{Nickname: "me", ID: "selfself-0000"}

func TestStartRunsCycleAndLeavesScanning(t *testing.T) {
	radio := &fakeRadio{}
	c := newTestCoordinator(t, radio, fastConfig())

	err := c.Start(context.Background(), self, fixedHeading{deg: 45, status: HeadingAvailable})
	assert.NilError(t, err)

	calls, frames, overlap := radio.snapshot()
	assert.DeepEqual(t, calls, []string{"adv", "end-adv", "scan"})
	assert.DeepEqual(t, frames, []string{"MM|me|selfself|045"})
	assert.Assert(t, !overlap)

	st := c.Status()
	assert.Equal(t, st.State, StateScanning)
	assert.Assert(t, st.Scanning)
	assert.Assert(t, !st.Advertising)
	assert.Assert(t, !st.HeadingUnsupported)
}

func TestSecondCycleStopsScanFirst(t *testing.T) {
	radio := &fakeRadio{}
	c := newTestCoordinator(t, radio, fastConfig())
	headings := fixedHeading{deg: 1, status: HeadingAvailable}

	assert.NilError(t, c.Start(context.Background(), self, headings))
	assert.NilError(t, c.Start(context.Background(), self, headings))

	calls, _, overlap := radio.snapshot()
	assert.DeepEqual(t, calls, []string{"adv", "end-adv", "scan", "end-scan", "adv", "end-adv", "scan"})
	assert.Assert(t, !overlap)
}

func TestBroadcastRetriesThenSucceeds(t *testing.T) {
	radio := &fakeRadio{failFirst: 2}
	c := newTestCoordinator(t, radio, fastConfig())

	err := c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	assert.NilError(t, err)
	assert.Equal(t, radio.attempts, 3)
	assert.Equal(t, c.Status().State, StateScanning)
}

func TestBroadcastRetryBound(t *testing.T) {
	radio := &fakeRadio{failFirst: 100}
	c := newTestCoordinator(t, radio, fastConfig())

	err := c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	var bse *BroadcastStartError
	assert.Assert(t, errors.As(err, &bse))
	assert.Equal(t, bse.Attempts, 3)
	assert.Equal(t, radio.attempts, 3)

	st := c.Status()
	assert.Equal(t, st.State, StateFailed)
	assert.Assert(t, st.Scanning, "scanning resumes after a failed broadcast")
	assert.Assert(t, st.LastError != "")

	// Failed allows a restart
	radio.mu.Lock()
	radio.failFirst = 0
	radio.attempts = 0
	radio.mu.Unlock()
	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable}))
	assert.Equal(t, c.Status().State, StateScanning)
}

func TestStartWhileBusy(t *testing.T) {
	radio := &fakeRadio{}
	cfg := fastConfig()
	cfg.AdvertiseDuration = time.Hour
	c := newTestCoordinator(t, radio, cfg)

	result := make(chan error, 1)
	go func() {
		result <- c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	}()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if c.Status().State == StateAdvertising {
			return poll.Success()
		}
		return poll.Continue("state is %s", c.Status().State)
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(time.Millisecond))

	err := c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	assert.Assert(t, errors.Is(err, ErrRadioBusy))

	assert.NilError(t, c.Stop())
	assert.Assert(t, errors.Is(<-result, context.Canceled))

	calls, frames, overlap := radio.snapshot()
	assert.Equal(t, len(frames), 1)
	assert.Equal(t, calls[len(calls)-1], "end-adv")
	assert.Assert(t, !overlap)
	assert.Equal(t, c.Status().State, StateIdle)
}

func TestStartWhileRetryingBroadcast(t *testing.T) {
	radio := &fakeRadio{failFirst: 100}
	cfg := fastConfig()
	cfg.RetryDelay = time.Hour
	c := newTestCoordinator(t, radio, cfg)

	result := make(chan error, 1)
	go func() {
		result <- c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	}()
	attempts := func() int {
		radio.mu.Lock()
		defer radio.mu.Unlock()
		return radio.attempts
	}
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if st := c.Status(); st.State == StateStartingBroadcast && attempts() == 1 {
			return poll.Success()
		}
		return poll.Continue("state is %s after %d attempts", c.Status().State, attempts())
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(time.Millisecond))

	err := c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	assert.Assert(t, errors.Is(err, ErrRadioBusy))
	assert.Equal(t, attempts(), 1)
	st := c.Status()
	assert.Equal(t, st.State, StateStartingBroadcast)
	assert.Equal(t, st.Attempt, 1)

	assert.NilError(t, c.Stop())
	assert.Assert(t, errors.Is(<-result, context.Canceled))
	assert.Equal(t, attempts(), 1)
	assert.Equal(t, c.Status().State, StateIdle)
}

func TestBroadcastRetryLogsMessageOnly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	radio := &fakeRadio{failFirst: 100}
	c := NewCoordinator(radio, newTestCodec(), NewPeerRegistry(), fastConfig(), zap.New(core))
	t.Cleanup(func() { _ = c.Close() })

	err := c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	assert.Assert(t, errors.As(err, new(*BroadcastStartError)))

	retries := logs.FilterMessage("broadcast start failed").All()
	assert.Equal(t, len(retries), 3)
	for _, e := range retries {
		assert.Equal(t, e.Level, zapcore.WarnLevel)
		f, ok := e.ContextMap()["error"]
		assert.Assert(t, ok)
		assert.Equal(t, f, "advertiser unavailable")
		for _, field := range e.Context {
			assert.Check(t, field.Type != zapcore.ErrorType, "field %s", field.Key)
		}
	}

	failed := logs.FilterMessage("radio cycle failed").All()
	assert.Equal(t, len(failed), 1)
	assert.Equal(t, failed[0].Level, zapcore.ErrorLevel)
}

func TestStartCancelledByContext(t *testing.T) {
	radio := &fakeRadio{}
	cfg := fastConfig()
	cfg.AdvertiseDuration = time.Hour
	c := newTestCoordinator(t, radio, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Start(ctx, self, fixedHeading{status: HeadingAvailable})
	assert.Assert(t, errors.Is(err, context.DeadlineExceeded))

	st := c.Status()
	assert.Equal(t, st.State, StateIdle)
	assert.Assert(t, !st.Advertising)
}

func TestStopIdempotent(t *testing.T) {
	radio := &fakeRadio{}
	c := newTestCoordinator(t, radio, fastConfig())

	assert.NilError(t, c.Stop())
	assert.NilError(t, c.Stop())
	calls, _, _ := radio.snapshot()
	assert.Equal(t, len(calls), 0)

	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable}))
	assert.NilError(t, c.Stop())
	assert.NilError(t, c.Stop())
	calls, _, _ = radio.snapshot()
	assert.DeepEqual(t, calls, []string{"adv", "end-adv", "scan", "end-scan"})
	assert.Equal(t, c.Status().State, StateIdle)
}

func TestHeadingTimeoutFallsBackToZero(t *testing.T) {
	radio := &fakeRadio{}
	c := newTestCoordinator(t, radio, fastConfig())

	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{status: HeadingPending}))
	_, frames, _ := radio.snapshot()
	assert.DeepEqual(t, frames, []string{"MM|me|selfself|000"})
	assert.Assert(t, c.Status().HeadingUnsupported)

	// unsupported sticks for the session
	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{deg: 90, status: HeadingAvailable}))
	_, frames, _ = radio.snapshot()
	assert.Equal(t, frames[1], "MM|me|selfself|000")

	// Stop resets it
	assert.NilError(t, c.Stop())
	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{deg: 90, status: HeadingAvailable}))
	_, frames, _ = radio.snapshot()
	assert.Equal(t, frames[2], "MM|me|selfself|090")
}

func TestHeadingUnsupportedSource(t *testing.T) {
	radio := &fakeRadio{}
	c := newTestCoordinator(t, radio, fastConfig())

	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{status: HeadingUnsupported}))
	assert.Assert(t, c.Status().HeadingUnsupported)
	_, frames, _ := radio.snapshot()
	assert.Equal(t, frames[0], "MM|me|selfself|000")
}

func TestScanPipeline(t *testing.T) {
	radio := &fakeRadio{}
	c := newTestCoordinator(t, radio, fastConfig())
	stream := c.Subscribe()
	defer stream.Close()

	assert.NilError(t, c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable}))

	radio.emit(ScanResult{DeviceID: "AA:BB", ManufacturerData: []byte("\x59\x00MM|Ana|peer0001|180"), RSSI: -60})
	radio.emit(ScanResult{DeviceID: "AA:BB", ManufacturerData: []byte("MM|Ana|peer0001|181"), RSSI: -55})
	radio.emit(ScanResult{DeviceID: "CC:DD", ManufacturerData: []byte("garbage"), RSSI: -50})
	radio.emit(ScanResult{DeviceID: "EE:FF", ManufacturerData: []byte("MM|me|selfself|000"), RSSI: -50})
	radio.emit(ScanResult{Err: errors.New("adapter hiccup")})

	reg := c.Registry()
	assert.Equal(t, reg.Count(), 1)
	p, ok := reg.Get("peer0001")
	assert.Assert(t, ok)
	assert.Equal(t, p.SignalStrength, -55)
	assert.Equal(t, p.Heading, HeadingOf(181))
	assert.Equal(t, p.DeviceID, "AA:BB")

	first := <-stream.Events()
	assert.Equal(t, first.Outcome, Inserted)
	assert.Equal(t, first.Peer.Heading, HeadingOf(180))
	second := <-stream.Events()
	assert.Equal(t, second.Outcome, Updated)
	assert.Equal(t, len(stream.Events()), 0)
}

func TestRunReadsIdentityEachCycle(t *testing.T) {
	radio := &fakeRadio{}
	cfg := fastConfig()
	cfg.AdvertiseInterval = 5 * time.Millisecond
	c := newTestCoordinator(t, radio, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, &countingIdentity{}, fixedHeading{deg: 10, status: HeadingAvailable})
	}()

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		_, frames, _ := radio.snapshot()
		if len(frames) >= 2 {
			return poll.Success()
		}
		return poll.Continue("%d frames sent", len(frames))
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(time.Millisecond))

	cancel()
	assert.NilError(t, <-done)

	_, frames, overlap := radio.snapshot()
	assert.Equal(t, frames[0], "MM|first|selfself|010")
	assert.Equal(t, frames[1], "MM|second|selfself|010")
	assert.Assert(t, !overlap)
	assert.Equal(t, c.Status().State, StateIdle)
}

func TestRunReturnsBroadcastFailure(t *testing.T) {
	radio := &fakeRadio{failFirst: 100}
	c := newTestCoordinator(t, radio, fastConfig())

	err := c.Run(context.Background(), &countingIdentity{}, fixedHeading{status: HeadingAvailable})
	var bse *BroadcastStartError
	assert.Assert(t, errors.As(err, &bse))
}

func TestCloseEndsStreams(t *testing.T) {
	radio := &fakeRadio{}
	c := NewCoordinator(radio, newTestCodec(), NewPeerRegistry(), fastConfig(), nil)
	stream := c.Subscribe()

	assert.NilError(t, c.Close())
	_, open := <-stream.Events()
	assert.Assert(t, !open)

	err := c.Start(context.Background(), self, fixedHeading{status: HeadingAvailable})
	assert.Assert(t, errors.Is(err, ErrClosed))

	late := c.Subscribe()
	_, open = <-late.Events()
	assert.Assert(t, !open)
	late.Close()
}
