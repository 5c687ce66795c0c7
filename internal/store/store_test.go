package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"proximity-radar.klederson.com/internal/proximity"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func peer(id, nick string, rssi int, seen time.Time) proximity.DecodedPeer {
	return proximity.DecodedPeer{ID: id, Nickname: nick, SignalStrength: rssi, LastSeen: seen, Heading: proximity.HeadingOf(90)}
}

func TestOpenCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	assert.NilError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, "state.db"))
	assert.NilError(t, err)
	assert.NilError(t, db.Ping())
}

func TestFriends(t *testing.T) {
	db := newTestDB(t)

	assert.NilError(t, db.AddFriend("a1", "Ana", t0))
	assert.NilError(t, db.AddFriend("b2", "", t0.Add(time.Second)))
	assert.NilError(t, db.AddFriend("a1", "", t0.Add(time.Hour)))

	friends, err := db.ListFriends()
	assert.NilError(t, err)
	assert.Equal(t, len(friends), 2)
	assert.Equal(t, friends[0].ID, "a1")
	assert.Equal(t, friends[0].Nickname, "Ana")
	assert.Assert(t, friends[0].AddedAt.Equal(t0))
	assert.Assert(t, friends[0].LastSeen == nil)

	removed, err := db.RemoveFriend("a1")
	assert.NilError(t, err)
	assert.Assert(t, removed)
	removed, err = db.RemoveFriend("a1")
	assert.NilError(t, err)
	assert.Assert(t, !removed)
}

func TestFriendLastSeenFromSightings(t *testing.T) {
	db := newTestDB(t)
	assert.NilError(t, db.AddFriend("b2", "", t0))
	assert.NilError(t, db.RecordSighting(peer("b2", "Bea", -60, t0.Add(time.Minute))))

	friends, err := db.ListFriends()
	assert.NilError(t, err)
	assert.Equal(t, friends[0].Nickname, "Bea")
	assert.Assert(t, friends[0].LastSeen != nil)
	assert.Assert(t, friends[0].LastSeen.Equal(t0.Add(time.Minute)))
}

func TestRecordSightingUpserts(t *testing.T) {
	db := newTestDB(t)
	assert.NilError(t, db.RecordSighting(peer("a1", "Ana", -70, t0)))
	p := peer("a1", "Ana2", -50, t0.Add(time.Minute))
	p.Heading = proximity.Heading{}
	assert.NilError(t, db.RecordSighting(p))

	s, ok, err := db.GetSighting("a1")
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, s.Nickname, "Ana2")
	assert.Equal(t, s.LastRSSI, -50)
	assert.Equal(t, s.Count, 2)
	assert.Assert(t, s.FirstSeen.Equal(t0))
	assert.Assert(t, s.LastSeen.Equal(t0.Add(time.Minute)))
	assert.Assert(t, !s.Heading.Valid)

	_, ok, err = db.GetSighting("missing")
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}

func TestListSightingsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	assert.NilError(t, db.RecordSighting(peer("old", "O", -70, t0)))
	assert.NilError(t, db.RecordSighting(peer("new", "N", -70, t0.Add(time.Hour))))

	all, err := db.ListSightings(0)
	assert.NilError(t, err)
	assert.Equal(t, len(all), 2)
	assert.Equal(t, all[0].ID, "new")

	one, err := db.ListSightings(1)
	assert.NilError(t, err)
	assert.Equal(t, len(one), 1)
}

type countingRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingRecorder) RecordSighting(p proximity.DecodedPeer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, p.ID)
	return nil
}

func TestJournalThrottlesUpdates(t *testing.T) {
	rec := &countingRecorder{}
	j := NewJournal(rec, 30*time.Second, nil)

	events := []struct {
		ev    proximity.PeerEvent
		wrote bool
	}{
		{proximity.PeerEvent{Peer: peer("a", "A", -60, t0), Outcome: proximity.Inserted}, true},
		{proximity.PeerEvent{Peer: peer("a", "A", -61, t0.Add(10 * time.Second)), Outcome: proximity.Updated}, false},
		{proximity.PeerEvent{Peer: peer("a", "A", -62, t0.Add(31 * time.Second)), Outcome: proximity.Updated}, true},
		{proximity.PeerEvent{Peer: peer("b", "B", -60, t0.Add(32 * time.Second)), Outcome: proximity.Updated}, true},
	}
	for i, e := range events {
		wrote, err := j.Record(e.ev)
		assert.NilError(t, err)
		assert.Equal(t, wrote, e.wrote, "event %d", i)
	}
	assert.DeepEqual(t, rec.ids, []string{"a", "a", "b"})
}

func TestJournalFollow(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal(db, time.Minute, nil)

	events := make(chan proximity.PeerEvent, 2)
	events <- proximity.PeerEvent{Peer: peer("a", "A", -60, t0), Outcome: proximity.Inserted}
	events <- proximity.PeerEvent{Peer: peer("b", "B", -60, t0), Outcome: proximity.Inserted}
	close(events)
	j.Follow(context.Background(), events)

	all, err := db.ListSightings(0)
	assert.NilError(t, err)
	assert.Equal(t, len(all), 2)
}

func TestJournalFollowStopsOnCancel(t *testing.T) {
	j := NewJournal(&countingRecorder{}, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		j.Follow(ctx, make(chan proximity.PeerEvent))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
