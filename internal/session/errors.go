package session

import "errors"

var (
	ErrTooManySessions = errors.New("too many sessions")
	ErrInvalidRole     = errors.New("invalid role")
	// ErrIDExhausted is returned when repeated id generation keeps colliding
	// with live sessions.
	ErrIDExhausted = errors.New("failed to allocate unique session id")
)
