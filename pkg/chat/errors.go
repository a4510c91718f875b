package chat

import (
	"github.com/pkg/errors"
)

// Sentinel errors for submissions that are rejected before any side effect.
var (
	// ErrEmptyPrompt is returned when a prompt is empty or whitespace-only.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrSendInFlight is returned when a submission is attempted while a prior
	// one on the same timeline is still awaiting its reply.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrNotFound is returned by the transport for missing resources. Session
	// deletion treats it as success so repeated deletes stay idempotent.
	ErrNotFound = errors.New("not found")
)

// AuthError means the credential is missing, expired or rejected. It is never
// retried internally; the presentation layer must force re-authentication.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause == nil {
		return "authentication required"
	}
	return "authentication required: " + e.Cause.Error()
}

func (e *AuthError) Unwrap() error { return e.Cause }

// IsAuthError reports whether err carries an AuthError anywhere in its chain.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// TransportError covers network failures, timeouts and unexpected server
// responses. The send pipeline reconciles these into a visible error message.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return "transport failure"
	}
	return "transport failure: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }

// IsTransportError reports whether err carries a TransportError in its chain.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// InvariantError signals a programming-logic fault, e.g. reconciling a
// timeline that has no pending placeholder. Callers log it loudly and leave
// the timeline untouched rather than corrupting it.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// IsInvariantError reports whether err carries an InvariantError in its chain.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
