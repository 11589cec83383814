package wire

import "encoding/binary"

// PutString appends a u32-length-prefixed UTF-8 string to buf.
func PutString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}

// GetString reads a u32-length-prefixed UTF-8 string from buf, returning the
// string and the remainder of buf.
func GetString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(buf[:4])
	if n > MaxPayloadSize {
		return "", nil, ErrLengthTooLarge
	}
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, ErrTruncated
	}
	return string(buf[:n]), buf[n:], nil
}

// PutOptString encodes an optional string as a presence byte followed by
// PutString's encoding when present.
func PutOptString(buf []byte, s *string) []byte {
	if s == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return PutString(buf, *s)
}

// GetOptString is the GetString counterpart of PutOptString.
func GetOptString(buf []byte) (*string, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, ErrTruncated
	}
	present := buf[0]
	buf = buf[1:]
	if present == 0 {
		return nil, buf, nil
	}
	s, rest, err := GetString(buf)
	if err != nil {
		return nil, nil, err
	}
	return &s, rest, nil
}

// PutBytes appends a u32-length-prefixed byte string.
func PutBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

// GetBytes is the PutBytes counterpart.
func GetBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(buf[:4])
	if n > MaxPayloadSize {
		return nil, nil, ErrLengthTooLarge
	}
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, buf[n:], nil
}

// PutUint64 appends a big-endian u64.
func PutUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// GetUint64 reads a big-endian u64.
func GetUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint64(buf[:8]), buf[8:], nil
}
