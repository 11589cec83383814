package server

import (
	"errors"

	"github.com/chatroom-core/chatroom/pkg/chatroom"
	"github.com/chatroom-core/chatroom/pkg/crypto"
	"github.com/chatroom-core/chatroom/pkg/session"
	"github.com/chatroom-core/chatroom/pkg/userstore"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

// Server errors.
var (
	// ErrNotAuthenticated rejects an operation that requires a logged-in
	// session.
	ErrNotAuthenticated = errors.New("server: not authenticated")
)

// kindOf maps an operation failure to the machine-readable kind string
// carried in a failed Ack. Unrecognized errors collapse to an internal
// kind so no incidental detail leaks to the peer.
func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return wire.KindNotAuthenticated
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return wire.KindAlreadyAuthenticated
	case errors.Is(err, userstore.ErrUserExists):
		return wire.KindUserExists
	case errors.Is(err, userstore.ErrCredentialInvalid),
		errors.Is(err, crypto.ErrCredentialInvalid):
		return wire.KindCredentialInvalid
	case errors.Is(err, chatroom.ErrRecipientUnknown):
		return wire.KindRecipientUnknown
	case errors.Is(err, chatroom.ErrRecipientOffline):
		return wire.KindRecipientOffline
	case errors.Is(err, chatroom.ErrEmptyMessage):
		return wire.KindEmptyMessage
	case errors.Is(err, wire.ErrTruncated),
		errors.Is(err, wire.ErrLengthTooLarge),
		errors.Is(err, wire.ErrUnknownOpCode),
		errors.Is(err, wire.ErrUnknownDirection):
		return wire.KindMalformedFrame
	default:
		return wire.KindInternal
	}
}

// failure builds the Ack for a failed request. Internal failures get a
// fixed message so nothing incidental crosses the wire.
func failure(err error) wire.Ack {
	kind := kindOf(err)
	msg := err.Error()
	if kind == wire.KindInternal {
		msg = "internal error"
	}
	return wire.Ack{Kind: kind, Message: msg}
}

// success builds the Ack for a request that succeeded with body (nil for
// operations with no payload).
func success(body []byte) wire.Ack {
	return wire.Ack{OK: true, Body: body}
}
