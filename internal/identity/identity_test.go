package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gotest.tools/v3/assert"
)

func TestOpenCreatesIdentityOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.toml")

	s, err := Open(path, "Ana")
	assert.NilError(t, err)
	first, err := s.Identity()
	assert.NilError(t, err)
	assert.Equal(t, first.Nickname, "Ana")
	_, err = uuid.Parse(first.ID)
	assert.NilError(t, err)

	again, err := Open(path, "Someone Else")
	assert.NilError(t, err)
	second, _ := again.Identity()
	assert.DeepEqual(t, second, first)
}

func TestSetNicknamePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.toml")
	s, err := Open(path, "Ana")
	assert.NilError(t, err)
	before, _ := s.Identity()

	assert.NilError(t, s.SetNickname("  Bea  "))
	reopened, err := Open(path, "")
	assert.NilError(t, err)
	after, _ := reopened.Identity()
	assert.Equal(t, after.Nickname, "Bea")
	assert.Equal(t, after.ID, before.ID)
}

func TestSetNicknameRejectsBlank(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "identity.toml"), "Ana")
	assert.NilError(t, err)
	assert.Assert(t, errors.Is(s.SetNickname("   "), ErrEmptyNickname))
	id, _ := s.Identity()
	assert.Equal(t, id.Nickname, "Ana")
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.toml")
	assert.NilError(t, os.WriteFile(path, []byte("nickname = [unterminated"), 0600))
	_, err := Open(path, "Ana")
	assert.ErrorContains(t, err, "read identity")
}
