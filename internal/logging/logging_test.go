package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "radar.log")
	log, err := New("debug", path)
	assert.NilError(t, err)

	log.Debug("peer discovered")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(b), "peer discovered"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "")
	assert.ErrorContains(t, err, "log level")
}
