package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/proximity"
)

// Sighting is the journal row for one peer id.
type Sighting struct {
	ID        string            `json:"id"`
	Nickname  string            `json:"nickname"`
	FirstSeen time.Time         `json:"first_seen"`
	LastSeen  time.Time         `json:"last_seen"`
	LastRSSI  int               `json:"last_rssi"`
	Heading   proximity.Heading `json:"heading"`
	Count     int               `json:"count"`
}

// RecordSighting upserts the journal row for p.
func (d *DB) RecordSighting(p proximity.DecodedPeer) error {
	var heading sql.NullInt64
	if p.Heading.Valid {
		heading = sql.NullInt64{Int64: int64(p.Heading.Degrees), Valid: true}
	}
	seen := p.LastSeen.UnixMilli()
	_, err := d.db.Exec(`
		INSERT INTO sightings (id, nickname, first_seen, last_seen, last_rssi, heading, count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			nickname  = excluded.nickname,
			last_seen = excluded.last_seen,
			last_rssi = excluded.last_rssi,
			heading   = excluded.heading,
			count     = sightings.count + 1`,
		p.ID, p.Nickname, seen, seen, p.SignalStrength, heading)
	return errors.Wrapf(err, "record sighting %s", p.ID)
}

// GetSighting returns the journal row for id.
func (d *DB) GetSighting(id string) (Sighting, bool, error) {
	rows, err := d.querySightings(`WHERE id = ?`, id)
	if err != nil || len(rows) == 0 {
		return Sighting{}, false, err
	}
	return rows[0], true, nil
}

// ListSightings returns the most recently seen peers first. limit <= 0 means all.
func (d *DB) ListSightings(limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = -1
	}
	return d.querySightings(`ORDER BY last_seen DESC, id LIMIT ?`, limit)
}

func (d *DB) querySightings(tail string, args ...any) ([]Sighting, error) {
	rows, err := d.db.Query(`SELECT id, nickname, first_seen, last_seen, last_rssi, heading, count
		FROM sightings `+tail, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query sightings")
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var (
			s           Sighting
			first, last int64
			heading     sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Nickname, &first, &last, &s.LastRSSI, &heading, &s.Count); err != nil {
			return nil, errors.Wrap(err, "scan sighting")
		}
		s.FirstSeen = time.UnixMilli(first)
		s.LastSeen = time.UnixMilli(last)
		if heading.Valid {
			s.Heading = proximity.HeadingOf(int(heading.Int64))
		}
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "iterate sightings")
}

// SightingRecorder is the write side of the journal.
type SightingRecorder interface {
	RecordSighting(p proximity.DecodedPeer) error
}

// Journal writes peer events to the sightings table. New peers are written
// at once; updates for a known peer at most once per interval.
type Journal struct {
	rec   SightingRecorder
	every time.Duration
	log   *zap.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewJournal creates a journal writing through rec.
func NewJournal(rec SightingRecorder, every time.Duration, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{rec: rec, every: every, log: log, last: make(map[string]time.Time)}
}

// Record writes ev unless it is a throttled update. Reports whether a row
// was written.
func (j *Journal) Record(ev proximity.PeerEvent) (bool, error) {
	id := ev.Peer.ID
	seen := ev.Peer.LastSeen

	j.mu.Lock()
	prev, known := j.last[id]
	if ev.Outcome == proximity.Updated && known && seen.Sub(prev) < j.every {
		j.mu.Unlock()
		return false, nil
	}
	j.last[id] = seen
	j.mu.Unlock()

	if err := j.rec.RecordSighting(ev.Peer); err != nil {
		return false, err
	}
	return true, nil
}

// Follow records events until ctx ends or the channel closes.
func (j *Journal) Follow(ctx context.Context, events <-chan proximity.PeerEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := j.Record(ev); err != nil {
				j.log.Warn("journal: record sighting", zap.String("id", ev.Peer.ID), zap.Error(err))
			}
		}
	}
}
