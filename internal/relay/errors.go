package relay

import "errors"

var (
	// ErrUnknownUser is returned by lookups that name an identifier with no
	// registry record.
	ErrUnknownUser = errors.New("unknown user")
	// ErrNotRegistered is returned when an operation requires the calling
	// connection's own record and it no longer exists.
	ErrNotRegistered = errors.New("caller not registered")
)
