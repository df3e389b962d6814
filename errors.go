package iris

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSession is returned by Ask when the session key has no
	// conversation to continue. The caller must start one first.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotFound is returned by SessionStore.Append for an unknown
	// session key. Callers must create the session first.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptySessionKey rejects the empty string as a session key.
	ErrEmptySessionKey = errors.New("session key must not be empty")
)

// TransportError wraps a failure from the model-serving backend. It is
// surfaced to the caller verbatim and never retried internally.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnparseableResponseError reports a model response that matched none of the
// accepted shapes. Raw carries the payload for diagnostics.
type UnparseableResponseError struct {
	Raw []byte
}

func (e *UnparseableResponseError) Error() string {
	raw := e.Raw
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return fmt.Sprintf("unparseable model response: %s", raw)
}
