// Package wire implements the chatroom protocol's on-the-wire framing:
// direction/correlation/opcode headers, length-prefixed strings, and the
// cleartext handshake markers that precede any sealed envelope.
//
// Every multi-byte integer is big-endian. Encoding is deterministic: two
// equal values always serialize to the same bytes.
package wire

import "encoding/binary"

// MaxPayloadSize bounds any length-prefixed field and any decoded frame,
// matching a single UDP datagram's practical upper bound.
const MaxPayloadSize = 64 * 1024

// MaxUsernameLen is the maximum encoded length of a username, per the
// UserRecord data model (1..64 bytes UTF-8).
const MaxUsernameLen = 64

// Direction is the 1-byte tag at the front of every plaintext body.
type Direction uint8

const (
	DirRequest  Direction = 0
	DirResponse Direction = 1
	DirEvent    Direction = 2
)

func (d Direction) Valid() bool {
	return d == DirRequest || d == DirResponse || d == DirEvent
}

// OpCode identifies the payload that follows the header.
type OpCode uint8

const (
	OpLogin          OpCode = 0x10
	OpRegister       OpCode = 0x11
	OpLogout         OpCode = 0x12
	OpChangePassword OpCode = 0x13
	OpSay            OpCode = 0x20
	OpGetChats       OpCode = 0x21
	OpGetUsers       OpCode = 0x22
	OpFetchStatus    OpCode = 0x23
	OpHeartbeat      OpCode = 0x30
	OpEventOnline    OpCode = 0x40
	OpEventOffline   OpCode = 0x41
	OpEventNewMsg    OpCode = 0x42
	OpEventUsersUpd  OpCode = 0x43
)

// Header is the 6-byte fixed prefix of a decoded plaintext body:
// dir(1) corr_id(4) op(1).
type Header struct {
	Dir    Direction
	CorrID uint32
	Op     OpCode
}

const headerSize = 6

// EncodeFrame serializes a header and an already-encoded op-specific body
// into one plaintext buffer, ready to be sealed (or sent as-is pre-handshake,
// which this protocol never does — every post-Hello frame is sealed).
func EncodeFrame(h Header, body []byte) []byte {
	buf := make([]byte, headerSize+len(body))
	buf[0] = byte(h.Dir)
	binary.BigEndian.PutUint32(buf[1:5], h.CorrID)
	buf[5] = byte(h.Op)
	copy(buf[headerSize:], body)
	return buf
}

// DecodeFrame splits a plaintext buffer into its header and remaining body.
func DecodeFrame(buf []byte) (Header, []byte, error) {
	if len(buf) < headerSize {
		return Header{}, nil, ErrTruncated
	}
	if len(buf) > MaxPayloadSize {
		return Header{}, nil, ErrLengthTooLarge
	}
	h := Header{
		Dir:    Direction(buf[0]),
		CorrID: binary.BigEndian.Uint32(buf[1:5]),
		Op:     OpCode(buf[5]),
	}
	if !h.Dir.Valid() {
		return Header{}, nil, ErrUnknownDirection
	}
	body := buf[headerSize:]
	return h, body, nil
}
