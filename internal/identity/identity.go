// Package identity persists the local nickname and the device id. The id is a
// random UUID generated on first use and never changes afterwards.
package identity

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"proximity-radar.klederson.com/internal/proximity"
)

// ErrEmptyNickname is returned when a blank nickname is saved.
var ErrEmptyNickname = errors.New("nickname must not be empty")

// Store is a TOML-backed identity file. It satisfies proximity.IdentitySource.
type Store struct {
	path string

	mu sync.RWMutex
	id proximity.Identity
}

// Open loads the identity at path, creating it with a fresh id and
// fallbackNick when the file does not exist.
func Open(path, fallbackNick string) (*Store, error) {
	s := &Store{path: path}

	_, err := toml.DecodeFile(path, &s.id)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, errors.Wrapf(err, "read identity %s", path)
	}

	dirty := false
	if s.id.ID == "" {
		s.id.ID = uuid.NewString()
		dirty = true
	}
	if strings.TrimSpace(s.id.Nickname) == "" {
		s.id.Nickname = defaultNickname(fallbackNick)
		dirty = true
	}
	if dirty {
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Identity returns the current identity.
func (s *Store) Identity() (proximity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

// SetNickname changes and persists the nickname. The next advertise cycle
// picks it up.
func (s *Store) SetNickname(nick string) error {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return ErrEmptyNickname
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.id.Nickname
	s.id.Nickname = nick
	if err := s.saveLocked(); err != nil {
		s.id.Nickname = prev
		return err
	}
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "create identity dir")
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Wrap(err, "write identity")
	}
	if err := toml.NewEncoder(f).Encode(s.id); err != nil {
		f.Close()
		return errors.Wrap(err, "encode identity")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "write identity")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replace identity")
}

func defaultNickname(fallback string) string {
	if n := strings.TrimSpace(fallback); n != "" {
		return n
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return strings.SplitN(host, ".", 2)[0]
	}
	return "radar"
}
