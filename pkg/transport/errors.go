package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed endpoint.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no message handler is configured.
	ErrNoHandler = errors.New("transport: no message handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running endpoint.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrMessageTooLarge is returned when an outbound datagram exceeds the
	// wire codec's maximum payload size.
	ErrMessageTooLarge = errors.New("transport: message too large")
)
