package proximity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/metrics"
)

// State is the radio role the coordinator is in.
type State int

const (
	StateIdle State = iota
	StateStartingBroadcast
	StateAdvertising
	StateStoppingBroadcast
	StateScanning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStartingBroadcast:
		return "starting-broadcast"
	case StateAdvertising:
		return "advertising"
	case StateStoppingBroadcast:
		return "stopping-broadcast"
	case StateScanning:
		return "scanning"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time view of the coordinator.
type Status struct {
	State              State  `json:"state"`
	Attempt            int    `json:"attempt,omitempty"` // broadcast attempt while starting
	Scanning           bool   `json:"scanning"`
	Advertising        bool   `json:"advertising"`
	HeadingUnsupported bool   `json:"heading_unsupported"`
	Frame              string `json:"frame,omitempty"`
	LastError          string `json:"last_error,omitempty"`
}

// CoordinatorConfig holds the timing of the advertise/scan handoff.
type CoordinatorConfig struct {
	MaxBroadcastAttempts int
	RetryDelay           time.Duration
	HeadingPollAttempts  int
	HeadingPollInterval  time.Duration
	AdvertiseDuration    time.Duration // how long each advertise session lasts
	AdvertiseInterval    time.Duration // gap between cycles in Run, zero scans passively after the first cycle
	StepDelay            time.Duration // settle time between stopping one role and starting the other
	StreamBuffer         int
	Tx                   TxParameters
}

// DefaultCoordinatorConfig returns the timings used by the app.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxBroadcastAttempts: 5,
		RetryDelay:           500 * time.Millisecond,
		HeadingPollAttempts:  10,
		HeadingPollInterval:  100 * time.Millisecond,
		AdvertiseDuration:    2 * time.Second,
		AdvertiseInterval:    10 * time.Second,
		StepDelay:            200 * time.Millisecond,
		StreamBuffer:         64,
		Tx:                   TxParameters{CompanyID: 0x0059, Interval: 100 * time.Millisecond},
	}
}

// Coordinator owns the shared radio. It sequences stop scan, broadcast,
// stop broadcast and resume scan, and feeds scan results through the codec
// into the registry. Construct one per radio at the composition root.
type Coordinator struct {
	radio    Radio
	codec    *Codec
	registry *PeerRegistry
	cfg      CoordinatorConfig
	log      *zap.Logger
	hub      *eventHub

	mu                 sync.Mutex
	state              State
	attempt            int
	scanning           bool
	advertising        bool
	headingUnsupported bool
	selfID             string
	frame              string
	lastErr            error
	cancel             context.CancelFunc
	done               chan struct{}
	closed             bool
}

// NewCoordinator wires a coordinator to its radio, codec and registry.
func NewCoordinator(radio Radio, codec *Codec, registry *PeerRegistry, cfg CoordinatorConfig, log *zap.Logger) *Coordinator {
	def := DefaultCoordinatorConfig()
	if cfg.MaxBroadcastAttempts <= 0 {
		cfg.MaxBroadcastAttempts = def.MaxBroadcastAttempts
	}
	if cfg.HeadingPollAttempts <= 0 {
		cfg.HeadingPollAttempts = def.HeadingPollAttempts
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = def.StreamBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		radio:    radio,
		codec:    codec,
		registry: registry,
		cfg:      cfg,
		log:      log,
		hub:      newEventHub(),
	}
}

// Registry returns the registry fed by the scan pipeline.
func (c *Coordinator) Registry() *PeerRegistry { return c.registry }

// Subscribe opens a new peer event stream.
func (c *Coordinator) Subscribe() *PeerStream {
	return c.hub.subscribe(c.cfg.StreamBuffer)
}

// Status returns the current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:              c.state,
		Scanning:           c.scanning,
		Advertising:        c.advertising,
		HeadingUnsupported: c.headingUnsupported,
		Frame:              c.frame,
	}
	if c.state == StateStartingBroadcast {
		st.Attempt = c.attempt
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Start runs one advertise cycle and leaves the radio scanning. It blocks
// until the cycle finishes. A call while another cycle is running returns
// ErrRadioBusy without touching the radio. Start is also how a Failed
// coordinator is restarted.
func (c *Coordinator) Start(ctx context.Context, id Identity, headings HeadingSource) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case StateIdle, StateScanning, StateFailed:
	default:
		c.mu.Unlock()
		metrics.RadioBusy.Inc()
		c.log.Debug("start dropped, radio busy", zap.Stringer("state", c.state))
		return ErrRadioBusy
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	_, c.selfID = c.codec.Fields(id)
	c.lastErr = nil
	c.setStateLocked(StateStartingBroadcast, 0)
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.done == done {
			c.cancel, c.done = nil, nil
		}
		c.mu.Unlock()
		close(done)
	}()
	return c.cycle(cycleCtx, id, headings)
}

func (c *Coordinator) cycle(ctx context.Context, id Identity, headings HeadingSource) error {
	if err := c.endScan(); err != nil {
		c.log.Warn("stop scan before broadcast", zap.Error(err))
	}

	heading, err := c.awaitHeading(ctx, headings)
	if err != nil {
		return c.abort(err)
	}

	frame, err := c.codec.Encode(id, heading)
	if err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	c.frame = string(frame)
	c.mu.Unlock()

	if err := c.broadcast(ctx, frame); err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx.Err())
		}
		return c.fail(err)
	}

	if err := sleepCtx(ctx, c.cfg.AdvertiseDuration); err != nil {
		return c.abort(err)
	}

	c.setState(StateStoppingBroadcast)
	c.endAdvertising()

	if err := sleepCtx(ctx, c.cfg.StepDelay); err != nil {
		return c.abort(err)
	}

	if err := c.beginScan(); err != nil {
		return c.fail(err)
	}
	c.setState(StateScanning)
	return nil
}

// awaitHeading polls the heading source a bounded number of times. A source
// that never answers marks the heading unsupported for the session.
func (c *Coordinator) awaitHeading(ctx context.Context, headings HeadingSource) (Heading, error) {
	c.mu.Lock()
	unsupported := c.headingUnsupported
	c.mu.Unlock()
	if unsupported || headings == nil {
		c.markHeadingUnsupported()
		return HeadingOf(0), nil
	}

	for i := 0; i < c.cfg.HeadingPollAttempts; i++ {
		deg, status := headings.CurrentHeading()
		switch status {
		case HeadingAvailable:
			return HeadingOf(deg), nil
		case HeadingUnsupported:
			c.markHeadingUnsupported()
			return HeadingOf(0), nil
		}
		if i < c.cfg.HeadingPollAttempts-1 {
			if err := sleepCtx(ctx, c.cfg.HeadingPollInterval); err != nil {
				return Heading{}, err
			}
		}
	}
	c.log.Info("heading unavailable, advertising heading 0",
		zap.Int("polls", c.cfg.HeadingPollAttempts))
	c.markHeadingUnsupported()
	return HeadingOf(0), nil
}

func (c *Coordinator) markHeadingUnsupported() {
	c.mu.Lock()
	c.headingUnsupported = true
	c.mu.Unlock()
}

func (c *Coordinator) broadcast(ctx context.Context, frame []byte) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxBroadcastAttempts; attempt++ {
		c.setState(StateStartingBroadcast, attempt)
		err := c.radio.BeginAdvertising(ctx, frame, c.cfg.Tx)
		if err == nil {
			metrics.BroadcastAttempts.WithLabelValues("ok").Inc()
			c.mu.Lock()
			c.advertising = true
			c.setStateLocked(StateAdvertising, 0)
			c.mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		metrics.BroadcastAttempts.WithLabelValues("error").Inc()
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// message only; the stack goes out once with the terminal failure
		c.log.Warn("broadcast start failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxBroadcastAttempts),
			zap.String("error", err.Error()))
		if attempt < c.cfg.MaxBroadcastAttempts {
			if err := sleepCtx(ctx, c.cfg.RetryDelay); err != nil {
				return err
			}
		}
	}
	return &BroadcastStartError{Attempts: c.cfg.MaxBroadcastAttempts, Err: lastErr}
}

// fail resumes scanning, since a broadcast failure must not end discovery,
// and parks the coordinator in StateFailed until the next Start.
func (c *Coordinator) fail(err error) error {
	c.endAdvertising()
	if scanErr := c.beginScan(); scanErr != nil {
		c.log.Error("resume scan after failure", zap.Error(scanErr))
	}
	c.mu.Lock()
	c.lastErr = err
	c.setStateLocked(StateFailed, 0)
	c.mu.Unlock()
	c.log.Error("radio cycle failed", zap.Error(err))
	return err
}

// abort unwinds a cycle interrupted by cancellation.
func (c *Coordinator) abort(err error) error {
	c.endAdvertising()
	c.mu.Lock()
	c.setStateLocked(StateIdle, 0)
	c.mu.Unlock()
	return err
}

func (c *Coordinator) endAdvertising() {
	c.mu.Lock()
	adv := c.advertising
	c.advertising = false
	c.mu.Unlock()
	if !adv {
		return
	}
	if err := c.radio.EndAdvertising(context.Background()); err != nil {
		c.log.Warn("end advertising", zap.Error(err))
	}
}

// beginScan and endScan flip the flag under the lock but call the radio
// outside it; scan callbacks take the same lock.
func (c *Coordinator) beginScan() error {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return nil
	}
	c.scanning = true
	c.mu.Unlock()

	if err := c.radio.BeginScanning(c.handleScan); err != nil {
		c.mu.Lock()
		c.scanning = false
		c.mu.Unlock()
		return errors.Wrap(err, "begin scanning")
	}
	return nil
}

func (c *Coordinator) endScan() error {
	c.mu.Lock()
	if !c.scanning {
		c.mu.Unlock()
		return nil
	}
	c.scanning = false
	c.mu.Unlock()
	return errors.Wrap(c.radio.EndScanning(), "end scanning")
}

// handleScan is the decode, estimate, merge pipeline. A bad frame is dropped
// and never interrupts the scan.
func (c *Coordinator) handleScan(res ScanResult) {
	defer func() {
		if r := recover(); r != nil {
			metrics.FramesDropped.WithLabelValues("panic").Inc()
			c.log.Error("scan handler panic", zap.Any("recovered", r))
		}
	}()

	if res.Err != nil {
		metrics.ScanErrors.Inc()
		c.log.Warn("scan error", zap.String("error", res.Err.Error()))
		return
	}

	peer, err := c.codec.Decode(res.ManufacturerData, res.RSSI)
	if err != nil {
		metrics.FramesDropped.WithLabelValues(dropReason(err)).Inc()
		c.log.Debug("frame dropped",
			zap.String("device", res.DeviceID),
			zap.Binary("raw", res.ManufacturerData),
			zap.Error(err))
		return
	}

	c.mu.Lock()
	self := c.selfID
	c.mu.Unlock()
	if self != "" && peer.ID == self {
		metrics.FramesDropped.WithLabelValues("self").Inc()
		return
	}

	peer.DeviceID = res.DeviceID
	outcome := c.registry.Merge(peer)
	metrics.FramesDecoded.WithLabelValues(outcome.String()).Inc()
	metrics.PeersTracked.Set(float64(c.registry.Count()))
	if outcome == Inserted {
		c.log.Info("peer discovered",
			zap.String("id", peer.ID),
			zap.String("nickname", peer.Nickname),
			zap.Int("rssi", peer.SignalStrength))
	}
	if n := c.hub.publish(PeerEvent{Peer: peer, Outcome: outcome}); n > 0 {
		metrics.EventsDropped.Add(float64(n))
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrNoTag):
		return "no_tag"
	case errors.Is(err, ErrMalformedFields):
		return "malformed"
	default:
		return "other"
	}
}

// Stop aborts any running cycle, ends both radio roles and returns to
// StateIdle. Stopping an idle coordinator is a no-op.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	c.endAdvertising()
	err := c.endScan()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.headingUnsupported = false
	c.frame = ""
	if c.state != StateIdle {
		c.setStateLocked(StateIdle, 0)
	}
	return err
}

// Close stops the radio and closes every peer stream. The coordinator cannot
// be started again.
func (c *Coordinator) Close() error {
	err := c.Stop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.hub.close()
	return err
}

// Run keeps discovery going: it runs a cycle, then re-advertises every
// AdvertiseInterval, re-reading the identity each time so nickname changes go
// out on the next cycle. It returns nil when ctx ends and the cycle error when
// the coordinator fails; scanning continues after a failure until Stop.
func (c *Coordinator) Run(ctx context.Context, ids IdentitySource, headings HeadingSource) error {
	for {
		id, err := ids.Identity()
		if err != nil {
			return errors.Wrap(err, "read identity")
		}

		err = c.Start(ctx, id, headings)
		switch {
		case ctx.Err() != nil:
			_ = c.Stop()
			return nil
		case errors.Is(err, ErrRadioBusy):
		case err != nil:
			return err
		}

		var wait <-chan time.Time
		if c.cfg.AdvertiseInterval > 0 {
			timer := time.NewTimer(c.cfg.AdvertiseInterval)
			wait = timer.C
			select {
			case <-ctx.Done():
				timer.Stop()
				_ = c.Stop()
				return nil
			case <-wait:
			}
			continue
		}
		<-ctx.Done()
		_ = c.Stop()
		return nil
	}
}

func (c *Coordinator) setState(s State, attempt ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := 0
	if len(attempt) > 0 {
		a = attempt[0]
	}
	c.setStateLocked(s, a)
}

func (c *Coordinator) setStateLocked(s State, attempt int) {
	if c.state != s || c.attempt != attempt {
		c.log.Debug("radio state",
			zap.Stringer("from", c.state),
			zap.String("to", stateLabel(s, attempt)))
	}
	c.state = s
	c.attempt = attempt
	metrics.RadioState.Set(float64(s))
}

func stateLabel(s State, attempt int) string {
	if s == StateStartingBroadcast && attempt > 0 {
		return fmt.Sprintf("%s(%d)", s, attempt)
	}
	return s.String()
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
