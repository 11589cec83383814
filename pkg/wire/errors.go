package wire

import "errors"

// Wire codec errors.
var (
	// ErrTruncated is returned when a buffer ends before a declared field is
	// fully present.
	ErrTruncated = errors.New("wire: truncated frame")

	// ErrUnknownDirection is returned when the direction tag doesn't match
	// request, response, or event.
	ErrUnknownDirection = errors.New("wire: unknown direction tag")

	// ErrUnknownOpCode is returned when the op byte has no known meaning.
	ErrUnknownOpCode = errors.New("wire: unknown op code")

	// ErrLengthTooLarge is returned when a length-prefixed field declares a
	// size larger than MaxPayloadSize.
	ErrLengthTooLarge = errors.New("wire: length prefix exceeds maximum")

	// ErrUnknownCleartextTag is returned when a pre-handshake datagram's
	// leading byte isn't a recognized Hello/HelloAck marker.
	ErrUnknownCleartextTag = errors.New("wire: unknown cleartext message tag")
)
