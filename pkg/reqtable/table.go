// Package reqtable correlates outstanding requests to their responses over
// a connectionless transport. It is the sole place correlation ids
// are minted and matched — callers never construct one themselves.
package reqtable

import (
	"sync"
	"time"
)

// Response is what a waiting caller eventually receives: either a response
// body or an error (ErrTimeout, ErrClosed).
type Response struct {
	Body []byte
	Err  error
}

// slot is one outstanding request: an id, a deadline, and a waker. The
// waker is the
// buffered channel a caller blocks on.
type slot struct {
	ch    chan Response
	timer *time.Timer
}

// Table maps correlation_id -> RequestSlot for one endpoint. Safe for
// concurrent use; slot allocation and removal are guarded by a small mutex,
// and delivery to the waiter happens after the mutex is released (it's a
// single buffered send).
type Table struct {
	mu     sync.Mutex
	slots  map[uint32]*slot
	nextID uint32
	closed bool
}

// New creates an empty request table.
func New() *Table {
	return &Table{slots: make(map[uint32]*slot)}
}

// Allocate mints a fresh correlation id and opens a slot awaiting its
// response, firing timeout after d if nothing arrives first. The caller
// must send the request (tagged with the returned id) before reading from
// the returned channel. Cancel releases the slot if the caller gives up
// without a response (e.g. its own context is cancelled).
func (t *Table) Allocate(d time.Duration) (id uint32, wait <-chan Response, cancel func(), err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, nil, nil, ErrClosed
	}

	id, ok := t.nextFreeIDLocked()
	if !ok {
		t.mu.Unlock()
		return 0, nil, nil, ErrTableFull
	}

	s := &slot{ch: make(chan Response, 1)}
	t.slots[id] = s
	t.mu.Unlock()

	s.timer = time.AfterFunc(d, func() {
		t.complete(id, Response{Err: ErrTimeout})
	})

	cancel = func() { t.Cancel(id) }
	return id, s.ch, cancel, nil
}

// nextFreeIDLocked must be called with t.mu held.
func (t *Table) nextFreeIDLocked() (uint32, bool) {
	start := t.nextID
	for {
		id := t.nextID
		t.nextID++
		if _, inUse := t.slots[id]; !inUse {
			return id, true
		}
		if t.nextID == start {
			return 0, false
		}
	}
}

// Complete delivers a response to the slot matching id, if one exists. An
// arriving id with no slot (already completed, timed out, or never sent by
// us — e.g. a stale or spoofed reply) is dropped: a late reply lands
// harmlessly in an empty table.
func (t *Table) Complete(id uint32, body []byte) {
	t.complete(id, Response{Body: body})
}

func (t *Table) complete(id uint32, resp Response) {
	t.mu.Lock()
	s, ok := t.slots[id]
	if ok {
		delete(t.slots, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.ch <- resp
}

// Cancel removes a slot without delivering a response, releasing its id for
// reuse. Safe to call after the slot has already completed.
func (t *Table) Cancel(id uint32) {
	t.mu.Lock()
	s, ok := t.slots[id]
	if ok {
		delete(t.slots, id)
	}
	t.mu.Unlock()
	if ok && s.timer != nil {
		s.timer.Stop()
	}
}

// Shutdown completes every outstanding slot with ErrClosed and marks the
// table closed, so further Allocate calls fail immediately. There is no
// partially-shut-down state: callers racing with Shutdown either get a slot
// that's immediately completed with ErrClosed, or ErrClosed from Allocate.
func (t *Table) Shutdown() {
	t.mu.Lock()
	t.closed = true
	pending := t.slots
	t.slots = make(map[uint32]*slot)
	t.mu.Unlock()

	for _, s := range pending {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.ch <- Response{Err: ErrClosed}
	}
}

// Len reports the number of outstanding slots, for tests and diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
