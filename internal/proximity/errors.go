package proximity

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrFrameTooLarge means not even a minimal frame fits the advertisement budget.
	ErrFrameTooLarge = errors.New("advertisement frame exceeds payload budget")
	// ErrEmptyField means the identity has no nickname or no id to put on air.
	ErrEmptyField = errors.New("nickname and id must not be empty")
	// ErrNoTag means no candidate offset starts with the frame tag.
	ErrNoTag = errors.New("no frame tag at any candidate offset")
	// ErrMalformedFields means the tag matched but nickname or id is missing.
	ErrMalformedFields = errors.New("frame tag matched but required fields are empty")
	// ErrRadioBusy is returned when a role change is already in progress.
	ErrRadioBusy = errors.New("radio busy")
	// ErrNotStopped is returned by Runner.Restart while discovery is running.
	ErrNotStopped = errors.New("discovery is running")
	// ErrClosed is returned by a coordinator after Close.
	ErrClosed = errors.New("coordinator closed")
)

// DecodeError carries the raw bytes of a discarded advertisement.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d bytes: %v", len(e.Raw), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BroadcastStartError is surfaced once every broadcast attempt has failed.
type BroadcastStartError struct {
	Attempts int
	Err      error
}

func (e *BroadcastStartError) Error() string {
	return fmt.Sprintf("broadcast start failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *BroadcastStartError) Unwrap() error { return e.Err }
