package session

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/Warpcall/internal/media"
)

var (
	// ErrMediaAccessDenied means local capture was refused. The call attempt
	// cannot continue.
	ErrMediaAccessDenied = media.ErrAccessDenied

	// ErrStaleNegotiation marks an offer or answer the session cannot accept
	// in its current state. It is logged and never surfaced.
	ErrStaleNegotiation = errors.New("stale negotiation message")

	// ErrConnectivityFailed is delivered when the link fails for good.
	ErrConnectivityFailed = errors.New("connectivity failed")

	ErrSessionClosed = errors.New("session closed")
	ErrWrongRole     = errors.New("operation not valid for this role")
)

// Error wraps a failed session operation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
