package refresh

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshFailed marks every failed refresh attempt.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrNoSession is returned when there is no session, or no refresh
	// credential, to exchange.
	ErrNoSession = errors.New("no session to refresh")
	// ErrRejected is returned by an [Exchanger] when the server refused the
	// refresh credential (expired, revoked or already used).
	ErrRejected = errors.New("refresh credential rejected")
)

// FailureKind classifies a refresh outcome.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoSession
	FailureRejected
	FailureTransport
	FailureInvalidSession
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNoSession:
		return "no_session"
	case FailureRejected:
		return "rejected"
	case FailureTransport:
		return "transport"
	case FailureInvalidSession:
		return "invalid_session"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Error is returned by [Protocol.Refresh] on failure. It matches
// [ErrRefreshFailed] and the underlying cause with errors.Is.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("refresh failed (%s)", e.Kind)
	}
	return fmt.Sprintf("refresh failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRefreshFailed}
	}
	return []error{ErrRefreshFailed, e.Err}
}

// KindOf returns the failure kind carried by err, or FailureNone.
func KindOf(err error) FailureKind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return FailureNone
}
