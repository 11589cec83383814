package wire

// Machine-readable failure kinds carried in a failed Ack. Both endpoints
// agree on these spellings, so their canonical home is the codec package.
// The client maps a kind back to a typed error; the server maps a typed
// error to a kind. Cryptographic failures never cross the wire: the server
// drops undecodable frames instead of describing them to the sender.
const (
	KindMalformedFrame = "malformed-frame"

	KindRequestTimeout = "request-timeout"
	KindEndpointClosed = "endpoint-closed"
	KindTransportError = "transport-error"

	KindUserExists           = "user-exists"
	KindUserUnknown          = "user-unknown"
	KindCredentialInvalid    = "credential-invalid"
	KindNotAuthenticated     = "not-authenticated"
	KindAlreadyAuthenticated = "already-authenticated"

	KindRecipientUnknown = "recipient-unknown"
	KindRecipientOffline = "recipient-offline"
	KindEmptyMessage     = "empty-message"

	KindInternal = "internal"
)
