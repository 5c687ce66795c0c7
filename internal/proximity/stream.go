package proximity

import "sync"

// PeerEvent is emitted for every frame merged into the registry.
type PeerEvent struct {
	Peer    DecodedPeer  `json:"peer"`
	Outcome MergeOutcome `json:"outcome"`
}

// PeerStream is a subscription to peer events. It cannot be restarted:
// once closed its channel stays closed.
type PeerStream struct {
	ch   chan PeerEvent
	hub  *eventHub
	once sync.Once
}

// Events returns the receive side of the stream.
func (s *PeerStream) Events() <-chan PeerEvent { return s.ch }

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *PeerStream) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// eventHub fans events out to subscribers. Slow subscribers miss events
// instead of stalling the scan callback.
type eventHub struct {
	mu     sync.RWMutex
	subs   map[*PeerStream]struct{}
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[*PeerStream]struct{})}
}

func (h *eventHub) subscribe(buffer int) *PeerStream {
	s := &PeerStream{ch: make(chan PeerEvent, buffer), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *eventHub) remove(s *PeerStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// publish returns how many subscribers dropped the event.
func (h *eventHub) publish(e PeerEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *eventHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
