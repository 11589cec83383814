package client

import "errors"

// Client session errors.
var (
	// ErrNotConnected is returned by operations needing a live session.
	ErrNotConnected = errors.New("client: not connected")

	// ErrAlreadyConnected is returned by Connect on a live session.
	ErrAlreadyConnected = errors.New("client: already connected")

	// ErrHandshakeTimeout is returned by Connect when no HelloAck arrives
	// within the deadline.
	ErrHandshakeTimeout = errors.New("client: handshake timed out")

	// ErrRequestTimeout is returned when a request received no response
	// within its deadline. The session is left untouched: the server may
	// still be alive, and a late reply is dropped harmlessly.
	ErrRequestTimeout = errors.New("client: request timed out")

	// ErrEndpointClosed is returned to requests in flight when the session
	// shuts down.
	ErrEndpointClosed = errors.New("client: endpoint closed")

	// ErrTransportError wraps a socket-level send failure.
	ErrTransportError = errors.New("client: transport error")
)

// ServerError is a failure the server answered with: a machine-readable
// kind plus a human-readable message.
type ServerError struct {
	Kind    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "server: " + e.Kind
	}
	return "server: " + e.Kind + ": " + e.Message
}

// IsKind reports whether err is a ServerError with the given kind.
func IsKind(err error, kind string) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Kind == kind
}
