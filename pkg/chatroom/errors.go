package chatroom

import "errors"

// Chat errors. RecipientUnknown and RecipientOffline are decided by the
// server handler, which can see the user store and the session registry;
// they live here because they belong to the chat vocabulary.
var (
	// ErrEmptyMessage rejects a Say with no text.
	ErrEmptyMessage = errors.New("chatroom: empty message")

	// ErrRecipientUnknown rejects a private Say to an unregistered name.
	ErrRecipientUnknown = errors.New("chatroom: recipient unknown")

	// ErrRecipientOffline rejects a private Say to a registered user with no
	// authenticated session.
	ErrRecipientOffline = errors.New("chatroom: recipient offline")
)
