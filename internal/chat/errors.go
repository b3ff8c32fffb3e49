package chat

import "errors"

var (
	// ErrInvalidUsername is returned when a join carries an empty or
	// whitespace-only username.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrAlreadyBound is returned when a connection tries to bind a second username.
	ErrAlreadyBound = errors.New("connection already bound")
	// ErrConnectionClosed is returned for operations on a connection that is no longer live.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrStorageUnavailable wraps any failure of the durable message log.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
