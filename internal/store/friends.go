package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Friend is a peer id the user has marked.
type Friend struct {
	ID       string     `json:"id"`
	Nickname string     `json:"nickname"`
	AddedAt  time.Time  `json:"added_at"`
	LastSeen *time.Time `json:"last_seen,omitempty"` // from the sightings journal
}

// AddFriend marks id as a friend. Re-adding refreshes the nickname only.
func (d *DB) AddFriend(id, nickname string, at time.Time) error {
	_, err := d.db.Exec(`
		INSERT INTO friends (id, nickname, added_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET nickname = CASE
			WHEN excluded.nickname = '' THEN friends.nickname
			ELSE excluded.nickname END`,
		id, nickname, at.UnixMilli())
	return errors.Wrapf(err, "add friend %s", id)
}

// RemoveFriend unmarks id. Returns false if it was not a friend.
func (d *DB) RemoveFriend(id string) (bool, error) {
	res, err := d.db.Exec(`DELETE FROM friends WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrapf(err, "remove friend %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// ListFriends returns all friends, oldest first, with their last sighting.
func (d *DB) ListFriends() ([]Friend, error) {
	rows, err := d.db.Query(`
		SELECT f.id, COALESCE(NULLIF(f.nickname, ''), s.nickname, ''), f.added_at, s.last_seen
		FROM friends f LEFT JOIN sightings s ON s.id = f.id
		ORDER BY f.added_at, f.id`)
	if err != nil {
		return nil, errors.Wrap(err, "list friends")
	}
	defer rows.Close()

	var out []Friend
	for rows.Next() {
		var (
			f        Friend
			added    int64
			lastSeen sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.Nickname, &added, &lastSeen); err != nil {
			return nil, errors.Wrap(err, "scan friend")
		}
		f.AddedAt = time.UnixMilli(added)
		if lastSeen.Valid {
			ts := time.UnixMilli(lastSeen.Int64)
			f.LastSeen = &ts
		}
		out = append(out, f)
	}
	return out, errors.Wrap(rows.Err(), "iterate friends")
}
