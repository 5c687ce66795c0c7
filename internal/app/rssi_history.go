package app

import "sync"

// RSSIRing is a circular buffer for RSSI history values.
type RSSIRing struct {
	buf   []float64
	pos   int
	count int
}

// NewRSSIRing creates a new circular buffer with the given capacity.
func NewRSSIRing(capacity int) *RSSIRing {
	if capacity < 1 {
		capacity = 1
	}
	return &RSSIRing{buf: make([]float64, capacity)}
}

// Push adds a value, overwriting the oldest once full.
func (r *RSSIRing) Push(val float64) {
	r.buf[r.pos] = val
	r.pos = (r.pos + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Values returns all stored values in chronological order.
func (r *RSSIRing) Values() []float64 {
	if r.count == 0 {
		return nil
	}
	result := make([]float64, r.count)
	if r.count < len(r.buf) {
		copy(result, r.buf[:r.count])
	} else {
		n := copy(result, r.buf[r.pos:])
		copy(result[n:], r.buf[:r.pos])
	}
	return result
}

// Last returns the most recent value, or 0 if empty.
func (r *RSSIRing) Last() float64 {
	if r.count == 0 {
		return 0
	}
	return r.buf[(r.pos-1+len(r.buf))%len(r.buf)]
}

// Len returns the number of stored values.
func (r *RSSIRing) Len() int { return r.count }

// History keeps one ring per peer id.
type History struct {
	mu    sync.Mutex
	size  int
	rings map[string]*RSSIRing
}

// NewHistory keeps the last size readings of every peer.
func NewHistory(size int) *History {
	return &History{size: size, rings: make(map[string]*RSSIRing)}
}

func (h *History) Push(id string, rssi int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rings[id]
	if !ok {
		r = NewRSSIRing(h.size)
		h.rings[id] = r
	}
	r.Push(float64(rssi))
}

func (h *History) Values(id string) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rings[id]; ok {
		return r.Values()
	}
	return nil
}

func (h *History) Forget(id string) {
	h.mu.Lock()
	delete(h.rings, id)
	h.mu.Unlock()
}
