package proximity

import (
	"sync"
	"time"
)

// MergeOutcome reports whether Merge created or refreshed an entry.
type MergeOutcome int

const (
	Inserted MergeOutcome = iota
	Updated
)

func (o MergeOutcome) String() string {
	if o == Updated {
		return "updated"
	}
	return "inserted"
}

// MarshalText encodes the outcome by name.
func (o MergeOutcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// PeerRegistry is a thread-safe table of observed peers, one entry per id,
// kept in first-sighting order.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*DecodedPeer
	order []string
}

// NewPeerRegistry creates an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[string]*DecodedPeer),
	}
}

// Merge inserts p or overwrites the stored entry with the same id.
// The newest sighting always wins.
func (r *PeerRegistry) Merge(p DecodedPeer) MergeOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.peers[p.ID]; ok {
		*existing = p
		return Updated
	}

	cp := p
	r.peers[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return Inserted
}

// Remove deletes the entry for id. Returns false if there was none.
func (r *PeerRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *PeerRegistry) removeLocked(id string) bool {
	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the entry for id.
func (r *PeerRegistry) Get(id string) (DecodedPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	if !ok {
		return DecodedPeer{}, false
	}
	return *p, true
}

// Snapshot returns copies of all entries in first-sighting order.
func (r *PeerRegistry) Snapshot() []DecodedPeer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]DecodedPeer, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.peers[id])
	}
	return result
}

// Count returns the number of tracked peers.
func (r *PeerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Evict removes peers not seen since now-ttl and returns their ids.
// A non-positive ttl disables expiry.
func (r *PeerRegistry) Evict(ttl time.Duration, now time.Time) []string {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-ttl)
	var evicted []string
	for _, id := range append([]string(nil), r.order...) {
		if r.peers[id].LastSeen.Before(cutoff) {
			r.removeLocked(id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
