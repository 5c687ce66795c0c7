package friends

import (
	"testing"

	"gotest.tools/v3/assert"

	"proximity-radar.klederson.com/internal/store"
)

func newTestRepo(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir())
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetPersists(t *testing.T) {
	repo := newTestRepo(t)
	s, err := Load(repo)
	assert.NilError(t, err)
	assert.Equal(t, s.Len(), 0)

	assert.NilError(t, s.Add("b2", "Bea"))
	assert.NilError(t, s.Add("a1", "Ana"))
	assert.Assert(t, s.Contains("a1"))

	reloaded, err := Load(repo)
	assert.NilError(t, err)
	assert.DeepEqual(t, reloaded.IDs(), []string{"a1", "b2"})
}

func TestToggle(t *testing.T) {
	s, err := Load(newTestRepo(t))
	assert.NilError(t, err)

	on, err := s.Toggle("a1", "Ana")
	assert.NilError(t, err)
	assert.Assert(t, on)
	on, err = s.Toggle("a1", "Ana")
	assert.NilError(t, err)
	assert.Assert(t, !on)
	assert.Assert(t, !s.Contains("a1"))
}

func TestRemove(t *testing.T) {
	s, err := Load(nil)
	assert.NilError(t, err)
	assert.NilError(t, s.Add("a1", ""))

	was, err := s.Remove("a1")
	assert.NilError(t, err)
	assert.Assert(t, was)
	was, err = s.Remove("a1")
	assert.NilError(t, err)
	assert.Assert(t, !was)
}

func TestAddRejectsEmpty(t *testing.T) {
	s, _ := Load(nil)
	assert.ErrorContains(t, s.Add("", "x"), "must not be empty")
}
