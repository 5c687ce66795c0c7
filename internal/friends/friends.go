// Package friends tracks the peer ids the user has marked. Lookups hit an
// in-memory set; changes are written through to the state database.
package friends

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"proximity-radar.klederson.com/internal/store"
)

// Repository persists friends.
type Repository interface {
	AddFriend(id, nickname string, at time.Time) error
	RemoveFriend(id string) (bool, error)
	ListFriends() ([]store.Friend, error)
}

// Set is the friend list. Safe for concurrent use.
type Set struct {
	ids  mapset.Set[string]
	repo Repository
	now  func() time.Time
}

// Load reads the persisted friends. A nil repo keeps the set in memory only.
func Load(repo Repository) (*Set, error) {
	s := &Set{ids: mapset.NewSet[string](), repo: repo, now: time.Now}
	if repo == nil {
		return s, nil
	}
	list, err := repo.ListFriends()
	if err != nil {
		return nil, errors.Wrap(err, "load friends")
	}
	for _, f := range list {
		s.ids.Add(f.ID)
	}
	return s, nil
}

// Contains reports whether id is a friend.
func (s *Set) Contains(id string) bool {
	return s.ids.Contains(id)
}

// Add marks id as a friend.
func (s *Set) Add(id, nickname string) error {
	if id == "" {
		return errors.New("friend id must not be empty")
	}
	if s.repo != nil {
		if err := s.repo.AddFriend(id, nickname, s.now()); err != nil {
			return err
		}
	}
	s.ids.Add(id)
	return nil
}

// Remove unmarks id. Returns false if it was not a friend.
func (s *Set) Remove(id string) (bool, error) {
	if s.repo != nil {
		if _, err := s.repo.RemoveFriend(id); err != nil {
			return false, err
		}
	}
	was := s.ids.Contains(id)
	s.ids.Remove(id)
	return was, nil
}

// Toggle flips the friend mark and returns the new state.
func (s *Set) Toggle(id, nickname string) (bool, error) {
	if s.Contains(id) {
		_, err := s.Remove(id)
		return false, err
	}
	return true, s.Add(id, nickname)
}

// IDs returns the friend ids sorted.
func (s *Set) IDs() []string {
	ids := s.ids.ToSlice()
	sort.Strings(ids)
	return ids
}

// Len returns the number of friends.
func (s *Set) Len() int {
	return s.ids.Cardinality()
}
