// Package chatroom holds the server's message and presence history: one
// bounded public log, and per-user logs keyed by the other participant's
// name. A private message lands in both participants' logs with the same
// timestamp, so either side's view of the conversation is identical.
package chatroom

import (
	"sync"
	"time"
)

// PublicLog is the sentinel log name for the shared room.
const PublicLog = "public"

// DefaultHistoryLimit bounds each log; the oldest entry is evicted first.
const DefaultHistoryLimit = 256

// Kind tags an Entry.
type Kind uint8

const (
	KindOnline Kind = iota
	KindOffline
	KindMessage
)

// Entry is one line of history: a presence transition or a message.
type Entry struct {
	Time    time.Time
	Speaker string
	Kind    Kind
	Text    string // empty unless Kind == KindMessage
}

// Room is the server's chat state. Safe for concurrent use.
type Room struct {
	limit int

	mu      sync.Mutex
	public  []Entry
	private map[string]map[string][]Entry // owner -> peer -> log
}

// NewRoom creates a Room bounding each log at limit entries; limit <= 0
// selects DefaultHistoryLimit.
func NewRoom(limit int) *Room {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Room{
		limit:   limit,
		private: make(map[string]map[string][]Entry),
	}
}

// PostPublic appends a message to the public log.
func (r *Room) PostPublic(from, text string, now time.Time) (Entry, error) {
	if text == "" {
		return Entry{}, ErrEmptyMessage
	}
	e := Entry{Time: now, Speaker: from, Kind: KindMessage, Text: text}

	r.mu.Lock()
	r.public = appendBounded(r.public, e, r.limit)
	r.mu.Unlock()
	return e, nil
}

// PostPrivate appends a message to both participants' logs of each other,
// with one shared timestamp.
func (r *Room) PostPrivate(from, to, text string, now time.Time) (Entry, error) {
	if text == "" {
		return Entry{}, ErrEmptyMessage
	}
	e := Entry{Time: now, Speaker: from, Kind: KindMessage, Text: text}

	r.mu.Lock()
	r.appendPrivateLocked(from, to, e)
	r.appendPrivateLocked(to, from, e)
	r.mu.Unlock()
	return e, nil
}

// PostPresence records user going online or offline: in the public log, and
// in the log of every user who has history with them.
func (r *Room) PostPresence(user string, online bool, now time.Time) {
	kind := KindOffline
	if online {
		kind = KindOnline
	}
	e := Entry{Time: now, Speaker: user, Kind: kind}

	r.mu.Lock()
	r.public = appendBounded(r.public, e, r.limit)
	for owner, logs := range r.private {
		if owner == user {
			continue
		}
		if _, ok := logs[user]; ok {
			logs[user] = appendBounded(logs[user], e, r.limit)
		}
	}
	r.mu.Unlock()
}

// Chats returns a copy of user's log with peer, or the public log when peer
// is nil. A never-seen peer yields an empty log.
func (r *Room) Chats(user string, peer *string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var src []Entry
	if peer == nil {
		src = r.public
	} else if logs, ok := r.private[user]; ok {
		src = logs[*peer]
	}
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

func (r *Room) appendPrivateLocked(owner, peer string, e Entry) {
	logs, ok := r.private[owner]
	if !ok {
		logs = make(map[string][]Entry)
		r.private[owner] = logs
	}
	logs[peer] = appendBounded(logs[peer], e, r.limit)
}

func appendBounded(log []Entry, e Entry, limit int) []Entry {
	log = append(log, e)
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	return log
}
