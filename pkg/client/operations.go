package client

import (
	"sort"

	"github.com/chatroom-core/chatroom/pkg/chatroom"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

// Register creates a new account on the server. It does not log in.
func (s *Session) Register(username, password string) error {
	_, err := s.request(wire.OpRegister, wire.Register{Username: username, Password: password}.Encode())
	return err
}

// Login authenticates this session. A success moves the session to
// StateAuthenticated and seeds the roster with ourselves.
func (s *Session) Login(username, password string) error {
	_, err := s.request(wire.OpLogin, wire.Login{Username: username, Password: password}.Encode())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateAuthenticated
	s.username = username
	s.roster[username] = true
	s.mu.Unlock()
	return nil
}

// Logout tells the server goodbye and drops the connection. The server
// destroys its session on logout, so a fresh Connect is needed to come
// back.
func (s *Session) Logout() error {
	_, err := s.request(wire.OpLogout, nil)
	s.teardown()
	return err
}

// ChangePassword swaps this user's credential after proving the old one.
func (s *Session) ChangePassword(oldPassword, newPassword string) error {
	body := wire.ChangePassword{OldPassword: oldPassword, NewPassword: newPassword}.Encode()
	_, err := s.request(wire.OpChangePassword, body)
	return err
}

// Say posts text to recipient, or to the public room when recipient is nil.
func (s *Session) Say(recipient *string, text string) error {
	_, err := s.request(wire.OpSay, wire.Say{Recipient: recipient, Text: text}.Encode())
	return err
}

// GetChats fetches the history shared with peer (nil for the public room),
// refreshes the local mirror, and returns the entries.
func (s *Session) GetChats(peer *string) ([]wire.ChatEntryWire, error) {
	body, err := s.request(wire.OpGetChats, wire.GetChats{Peer: peer}.Encode())
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeGetChatsResp(body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.chats[mirrorKey(peer)] = resp.Entries
	s.mu.Unlock()
	return resp.Entries, nil
}

// GetUserInfo fetches the full roster, refreshes the mirror, and returns it.
func (s *Session) GetUserInfo() ([]wire.UserInfoWire, error) {
	body, err := s.request(wire.OpGetUsers, nil)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeGetUsersResp(body)
	if err != nil {
		return nil, err
	}
	s.updateRoster(resp.Users)
	return resp.Users, nil
}

// FetchChatroomStatus fetches our own standing plus the roster in one round
// trip.
func (s *Session) FetchChatroomStatus() (wire.FetchStatusResp, error) {
	body, err := s.request(wire.OpFetchStatus, nil)
	if err != nil {
		return wire.FetchStatusResp{}, err
	}
	resp, err := wire.DecodeFetchStatusResp(body)
	if err != nil {
		return wire.FetchStatusResp{}, err
	}
	s.updateRoster(resp.Users)
	return resp, nil
}

// PersonalInfo is the local view of who we are.
type PersonalInfo struct {
	Username      string
	Authenticated bool
}

// GetPersonalInfo reports the session's own identity, from local state.
func (s *Session) GetPersonalInfo() PersonalInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PersonalInfo{Username: s.username, Authenticated: s.state == StateAuthenticated}
}

// ServerInfo is the local view of the peer we talk to.
type ServerInfo struct {
	Addr  string
	State State
}

// GetServerInfo reports the target server and connection state, from local
// state.
func (s *Session) GetServerInfo() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := ServerInfo{State: s.state, Addr: s.cfg.ServerAddr}
	if s.serverAddr != nil {
		info.Addr = s.serverAddr.String()
	}
	return info
}

// State reports the session's lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Roster returns the mirrored user list, sorted by name.
func (s *Session) Roster() []wire.UserInfoWire {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.UserInfoWire, 0, len(s.roster))
	for name, online := range s.roster {
		out = append(out, wire.UserInfoWire{Name: name, Online: online})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CachedChats returns the mirrored history for peer (nil for public)
// without a network round trip.
func (s *Session) CachedChats(peer *string) []wire.ChatEntryWire {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.chats[mirrorKey(peer)]
	out := make([]wire.ChatEntryWire, len(src))
	copy(out, src)
	return out
}

func (s *Session) updateRoster(users []wire.UserInfoWire) {
	s.mu.Lock()
	s.roster = make(map[string]bool, len(users))
	for _, u := range users {
		s.roster[u.Name] = u.Online
	}
	s.mu.Unlock()
}

func mirrorKey(peer *string) string {
	if peer == nil {
		return chatroom.PublicLog
	}
	return *peer
}
