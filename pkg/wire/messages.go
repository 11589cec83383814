package wire

// This file encodes the op-specific bodies that follow a Header. Each type
// is a tagged union member selected by Header.Op; within a type, optional
// fields use the Put/GetOptString presence-byte convention from values.go.

// Login is the body of an OpLogin request.
type Login struct {
	Username string
	Password string
}

func (m Login) Encode() []byte {
	var buf []byte
	buf = PutString(buf, m.Username)
	buf = PutString(buf, m.Password)
	return buf
}

func DecodeLogin(buf []byte) (Login, error) {
	username, buf, err := GetString(buf)
	if err != nil {
		return Login{}, err
	}
	password, _, err := GetString(buf)
	if err != nil {
		return Login{}, err
	}
	return Login{Username: username, Password: password}, nil
}

// Register is the body of an OpRegister request. Same shape as Login.
type Register = Login

func DecodeRegister(buf []byte) (Register, error) { return DecodeLogin(buf) }

// ChangePassword is the body of an OpChangePassword request.
type ChangePassword struct {
	OldPassword string
	NewPassword string
}

func (m ChangePassword) Encode() []byte {
	var buf []byte
	buf = PutString(buf, m.OldPassword)
	buf = PutString(buf, m.NewPassword)
	return buf
}

func DecodeChangePassword(buf []byte) (ChangePassword, error) {
	old, buf, err := GetString(buf)
	if err != nil {
		return ChangePassword{}, err
	}
	next, _, err := GetString(buf)
	if err != nil {
		return ChangePassword{}, err
	}
	return ChangePassword{OldPassword: old, NewPassword: next}, nil
}

// Say is the body of an OpSay request. Recipient is nil for a public post.
type Say struct {
	Recipient *string
	Text      string
}

func (m Say) Encode() []byte {
	var buf []byte
	buf = PutOptString(buf, m.Recipient)
	buf = PutString(buf, m.Text)
	return buf
}

func DecodeSay(buf []byte) (Say, error) {
	recipient, buf, err := GetOptString(buf)
	if err != nil {
		return Say{}, err
	}
	text, _, err := GetString(buf)
	if err != nil {
		return Say{}, err
	}
	return Say{Recipient: recipient, Text: text}, nil
}

// GetChats is the body of an OpGetChats request. Peer is nil for the public log.
type GetChats struct {
	Peer *string
}

func (m GetChats) Encode() []byte {
	return PutOptString(nil, m.Peer)
}

func DecodeGetChats(buf []byte) (GetChats, error) {
	peer, _, err := GetOptString(buf)
	if err != nil {
		return GetChats{}, err
	}
	return GetChats{Peer: peer}, nil
}

// ChatEntryKind tags a ChatEntryWire's payload.
type ChatEntryKind uint8

const (
	ChatKindOnline ChatEntryKind = iota
	ChatKindOffline
	ChatKindMessage
)

// ChatEntryWire is the wire shape of a chatroom.Entry.
type ChatEntryWire struct {
	UnixTimeMS int64
	Speaker    string
	Kind       ChatEntryKind
	Text       string // only meaningful when Kind == ChatKindMessage
}

func (e ChatEntryWire) Encode() []byte {
	var buf []byte
	buf = PutUint64(buf, uint64(e.UnixTimeMS))
	buf = PutString(buf, e.Speaker)
	buf = append(buf, byte(e.Kind))
	if e.Kind == ChatKindMessage {
		buf = PutString(buf, e.Text)
	}
	return buf
}

func decodeChatEntry(buf []byte) (ChatEntryWire, []byte, error) {
	ts, buf, err := GetUint64(buf)
	if err != nil {
		return ChatEntryWire{}, nil, err
	}
	speaker, buf, err := GetString(buf)
	if err != nil {
		return ChatEntryWire{}, nil, err
	}
	if len(buf) < 1 {
		return ChatEntryWire{}, nil, ErrTruncated
	}
	kind := ChatEntryKind(buf[0])
	buf = buf[1:]
	var text string
	if kind == ChatKindMessage {
		text, buf, err = GetString(buf)
		if err != nil {
			return ChatEntryWire{}, nil, err
		}
	}
	return ChatEntryWire{UnixTimeMS: int64(ts), Speaker: speaker, Kind: kind, Text: text}, buf, nil
}

// GetChatsResp is the successful response body for OpGetChats.
type GetChatsResp struct {
	Entries []ChatEntryWire
}

func (m GetChatsResp) Encode() []byte {
	var buf []byte
	buf = PutUint64(buf, uint64(len(m.Entries)))
	for _, e := range m.Entries {
		buf = append(buf, e.Encode()...)
	}
	return buf
}

func DecodeGetChatsResp(buf []byte) (GetChatsResp, error) {
	n, buf, err := GetUint64(buf)
	if err != nil {
		return GetChatsResp{}, err
	}
	entries := make([]ChatEntryWire, 0, n)
	for i := uint64(0); i < n; i++ {
		var e ChatEntryWire
		e, buf, err = decodeChatEntry(buf)
		if err != nil {
			return GetChatsResp{}, err
		}
		entries = append(entries, e)
	}
	return GetChatsResp{Entries: entries}, nil
}

// UserInfoWire is the wire shape of a roster entry.
type UserInfoWire struct {
	Name   string
	Online bool
}

// GetUsersResp is the successful response body for OpGetUsers.
type GetUsersResp struct {
	Users []UserInfoWire
}

func (m GetUsersResp) Encode() []byte {
	var buf []byte
	buf = PutUint64(buf, uint64(len(m.Users)))
	for _, u := range m.Users {
		buf = PutString(buf, u.Name)
		if u.Online {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func DecodeGetUsersResp(buf []byte) (GetUsersResp, error) {
	n, buf, err := GetUint64(buf)
	if err != nil {
		return GetUsersResp{}, err
	}
	users := make([]UserInfoWire, 0, n)
	for i := uint64(0); i < n; i++ {
		var name string
		name, buf, err = GetString(buf)
		if err != nil {
			return GetUsersResp{}, err
		}
		if len(buf) < 1 {
			return GetUsersResp{}, ErrTruncated
		}
		users = append(users, UserInfoWire{Name: name, Online: buf[0] != 0})
		buf = buf[1:]
	}
	return GetUsersResp{Users: users}, nil
}

// FetchStatusResp is the successful response body for OpFetchStatus.
type FetchStatusResp struct {
	Self  UserInfoWire
	Users []UserInfoWire
}

func (m FetchStatusResp) Encode() []byte {
	var buf []byte
	buf = PutString(buf, m.Self.Name)
	if m.Self.Online {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, GetUsersResp{Users: m.Users}.Encode()...)
	return buf
}

func DecodeFetchStatusResp(buf []byte) (FetchStatusResp, error) {
	name, buf, err := GetString(buf)
	if err != nil {
		return FetchStatusResp{}, err
	}
	if len(buf) < 1 {
		return FetchStatusResp{}, ErrTruncated
	}
	self := UserInfoWire{Name: name, Online: buf[0] != 0}
	buf = buf[1:]
	rest, err := DecodeGetUsersResp(buf)
	if err != nil {
		return FetchStatusResp{}, err
	}
	return FetchStatusResp{Self: self, Users: rest.Users}, nil
}

// AuthFailedResp holds an authentication failure reason. It has no
// encoding: a failed login travels as an Ack with OK false and the reason
// in its Kind and Message fields — see Ack below.
type AuthFailedResp struct {
	Reason string
}

// Ack is the generic success/failure envelope wrapped around every request's
// response payload: OK and, on success, the op-specific Body; on failure,
// Kind/Message describing the error (see pkg/server's error taxonomy).
type Ack struct {
	OK      bool
	Kind    string // machine-readable failure kind, empty when OK
	Message string // human-readable detail, empty when OK
	Body    []byte // op-specific success payload, nil when !OK or op has no payload
}

func (a Ack) Encode() []byte {
	var buf []byte
	if a.OK {
		buf = append(buf, 1)
		buf = PutBytes(buf, a.Body)
		return buf
	}
	buf = append(buf, 0)
	buf = PutString(buf, a.Kind)
	buf = PutString(buf, a.Message)
	return buf
}

func DecodeAck(buf []byte) (Ack, error) {
	if len(buf) < 1 {
		return Ack{}, ErrTruncated
	}
	ok := buf[0] != 0
	buf = buf[1:]
	if ok {
		body, _, err := GetBytes(buf)
		if err != nil {
			return Ack{}, err
		}
		return Ack{OK: true, Body: body}, nil
	}
	kind, buf, err := GetString(buf)
	if err != nil {
		return Ack{}, err
	}
	message, _, err := GetString(buf)
	if err != nil {
		return Ack{}, err
	}
	return Ack{OK: false, Kind: kind, Message: message}, nil
}

// EventOnline/EventOffline carry just the affected username.
type EventOnline struct{ Username string }
type EventOffline struct{ Username string }

func (e EventOnline) Encode() []byte  { return PutString(nil, e.Username) }
func (e EventOffline) Encode() []byte { return PutString(nil, e.Username) }

func DecodeEventOnline(buf []byte) (EventOnline, error) {
	u, _, err := GetString(buf)
	return EventOnline{Username: u}, err
}

func DecodeEventOffline(buf []byte) (EventOffline, error) {
	u, _, err := GetString(buf)
	return EventOffline{Username: u}, err
}

// EventNewMsg notifies the client that a new chat entry arrived; From is nil
// for a public post.
type EventNewMsg struct {
	From *string
}

func (e EventNewMsg) Encode() []byte { return PutOptString(nil, e.From) }

func DecodeEventNewMsg(buf []byte) (EventNewMsg, error) {
	from, _, err := GetOptString(buf)
	if err != nil {
		return EventNewMsg{}, err
	}
	return EventNewMsg{From: from}, nil
}

// EventUsersUpdated carries no payload; its arrival is the signal.
type EventUsersUpdated struct{}

func (EventUsersUpdated) Encode() []byte { return nil }
