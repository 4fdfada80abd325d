package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrNoIdentity   = errors.New("note has no identity")
	ErrClosed       = errors.New("editor is closed")
	ErrNoConflict   = errors.New("no conflict pending")
	ErrConflict     = errors.New("a recovered draft is waiting for a decision")
	ErrUnsupported  = errors.New("operation not supported by the remote store")
	ErrInvalidDraft = errors.New("invalid draft record")
)

// ErrorKind classifies a remote failure for retry decisions.
type ErrorKind string

const (
	// KindTransport means the request never produced a response (no network, reset, timeout).
	KindTransport ErrorKind = "transport"
	// KindServer is a 5xx-class failure of the remote store.
	KindServer ErrorKind = "server"
	// KindClient is a validation or authorization failure. Never retried.
	KindClient ErrorKind = "client"
)

// Retryable reports whether a failure of this kind may succeed when attempted again.
func (k ErrorKind) Retryable() bool {
	return k == KindTransport || k == KindServer
}

// RemoteError is the structured failure returned by RemoteStore implementations.
type RemoteError struct {
	Op     string
	Status int
	Kind   ErrorKind
	Err    error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// KindForStatus maps an HTTP-like status code to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	if status >= 500 {
		return KindServer
	}
	return KindClient
}

// KindOf classifies err. Errors that carry no RemoteError are treated as
// transport failures: the caller cannot prove the request reached the server.
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) && re.Kind != "" {
		return re.Kind
	}
	return KindTransport
}

// IsRetryable is shorthand for KindOf(err).Retryable().
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
