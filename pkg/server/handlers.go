package server

import (
	"time"

	"github.com/chatroom-core/chatroom/pkg/chatroom"
	"github.com/chatroom-core/chatroom/pkg/notify"
	"github.com/chatroom-core/chatroom/pkg/session"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

// handleRequest dispatches one decoded request and replies with its Ack.
func (s *Server) handleRequest(sess *session.Session, header wire.Header, body []byte, now time.Time) {
	var ack wire.Ack
	switch header.Op {
	case wire.OpLogin:
		ack = s.handleLogin(sess, body, now)
	case wire.OpRegister:
		ack = s.handleRegister(body)
	case wire.OpLogout:
		ack = success(nil)
	case wire.OpChangePassword:
		ack = s.handleChangePassword(sess, body)
	case wire.OpSay:
		ack = s.handleSay(sess, body, now)
	case wire.OpGetChats:
		ack = s.handleGetChats(sess, body)
	case wire.OpGetUsers:
		ack = s.handleGetUsers(sess)
	case wire.OpFetchStatus:
		ack = s.handleFetchStatus(sess)
	case wire.OpHeartbeat:
		ack = success(nil)
	default:
		ack = failure(wire.ErrUnknownOpCode)
	}

	reply := wire.EncodeFrame(wire.Header{
		Dir:    wire.DirResponse,
		CorrID: header.CorrID,
		Op:     header.Op,
	}, ack.Encode())
	s.sealAndSend(sess, reply)

	// Logout destroys the session only after the farewell Ack went out.
	if header.Op == wire.OpLogout && ack.OK {
		s.registry.Logout(sess)
	}
}

func (s *Server) handleLogin(sess *session.Session, body []byte, now time.Time) wire.Ack {
	req, err := wire.DecodeLogin(body)
	if err != nil {
		return failure(err)
	}
	if err := s.users.Verify(req.Username, req.Password); err != nil {
		return failure(err)
	}
	if err := s.registry.Authenticate(sess, req.Username, now); err != nil {
		return failure(err)
	}
	return success(nil)
}

func (s *Server) handleRegister(body []byte) wire.Ack {
	req, err := wire.DecodeRegister(body)
	if err != nil {
		return failure(err)
	}
	if err := s.users.Register(req.Username, req.Password); err != nil {
		return failure(err)
	}

	s.sink.Notify(notify.Event{Kind: notify.UsersUpdated})
	s.broadcastEvent(wire.OpEventUsersUpd, wire.EventUsersUpdated{}.Encode(), "")
	return success(nil)
}

func (s *Server) handleChangePassword(sess *session.Session, body []byte) wire.Ack {
	username := sess.Username()
	if username == "" {
		return failure(ErrNotAuthenticated)
	}
	req, err := wire.DecodeChangePassword(body)
	if err != nil {
		return failure(err)
	}
	if err := s.users.ChangePassword(username, req.OldPassword, req.NewPassword); err != nil {
		return failure(err)
	}
	return success(nil)
}

func (s *Server) handleSay(sess *session.Session, body []byte, now time.Time) wire.Ack {
	from := sess.Username()
	if from == "" {
		return failure(ErrNotAuthenticated)
	}
	req, err := wire.DecodeSay(body)
	if err != nil {
		return failure(err)
	}

	if req.Recipient == nil {
		if _, err := s.room.PostPublic(from, req.Text, now); err != nil {
			return failure(err)
		}
		s.broadcastEvent(wire.OpEventNewMsg, wire.EventNewMsg{}.Encode(), from)
		return success(nil)
	}

	to := *req.Recipient
	if !s.users.Exists(to) {
		return failure(chatroom.ErrRecipientUnknown)
	}
	target, online := s.registry.GetByUsername(to)
	if !online {
		return failure(chatroom.ErrRecipientOffline)
	}
	if _, err := s.room.PostPrivate(from, to, req.Text, now); err != nil {
		return failure(err)
	}
	s.sendEvent(target, wire.OpEventNewMsg, wire.EventNewMsg{From: &from}.Encode())
	return success(nil)
}

func (s *Server) handleGetChats(sess *session.Session, body []byte) wire.Ack {
	username := sess.Username()
	if username == "" {
		return failure(ErrNotAuthenticated)
	}
	req, err := wire.DecodeGetChats(body)
	if err != nil {
		return failure(err)
	}

	entries := s.room.Chats(username, req.Peer)
	resp := wire.GetChatsResp{Entries: make([]wire.ChatEntryWire, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = entryToWire(e)
	}
	return success(resp.Encode())
}

func (s *Server) handleGetUsers(sess *session.Session) wire.Ack {
	if sess.Username() == "" {
		return failure(ErrNotAuthenticated)
	}
	return success(wire.GetUsersResp{Users: s.roster()}.Encode())
}

func (s *Server) handleFetchStatus(sess *session.Session) wire.Ack {
	username := sess.Username()
	if username == "" {
		return failure(ErrNotAuthenticated)
	}
	resp := wire.FetchStatusResp{
		Self:  wire.UserInfoWire{Name: username, Online: true},
		Users: s.roster(),
	}
	return success(resp.Encode())
}

// roster lists every registered user with their current presence.
func (s *Server) roster() []wire.UserInfoWire {
	names := s.users.Usernames()
	out := make([]wire.UserInfoWire, len(names))
	for i, name := range names {
		_, online := s.registry.GetByUsername(name)
		out[i] = wire.UserInfoWire{Name: name, Online: online}
	}
	return out
}

func entryToWire(e chatroom.Entry) wire.ChatEntryWire {
	w := wire.ChatEntryWire{
		UnixTimeMS: e.Time.UnixMilli(),
		Speaker:    e.Speaker,
	}
	switch e.Kind {
	case chatroom.KindOnline:
		w.Kind = wire.ChatKindOnline
	case chatroom.KindOffline:
		w.Kind = wire.ChatKindOffline
	case chatroom.KindMessage:
		w.Kind = wire.ChatKindMessage
		w.Text = e.Text
	}
	return w
}
