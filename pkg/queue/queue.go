// Package queue implements the update and return queues shared by the
// training producer and the dashboard renderer.
//
// Every operation is atomic, including the match-and-remove family, so a
// consumer scanning for requests can never remove an entry another goroutine
// inserted between its scan and its removal.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/pkg/errors"
)

var ErrClosed = errors.New("queue closed")

// Match selects messages for TakeMatching and WaitMatching.
type Match func(protocol.Message) bool

// OfKind matches any of the given kinds.
func OfKind(kinds ...protocol.Kind) Match {
	return func(m protocol.Message) bool {
		for _, k := range kinds {
			if m.Kind == k {
				return true
			}
		}
		return false
	}
}

type Queue struct {
	name string

	mu     sync.Mutex
	items  []protocol.Message
	wake   chan struct{}
	closed bool
}

func New(name string) *Queue {
	return &Queue{name: name, wake: make(chan struct{})}
}

func (q *Queue) Name() string { return q.name }

// Push appends messages. It never blocks.
func (q *Queue) Push(msgs ...protocol.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.Wrap(ErrClosed, q.name)
	}
	q.items = append(q.items, msgs...)
	q.broadcastLocked()
	return nil
}

func (q *Queue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Close wakes every waiter. Remaining messages can still be taken.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot copies the pending messages without removing them.
func (q *Queue) Snapshot() []protocol.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]protocol.Message{}, q.items...)
}

// TryPop removes the oldest message, if any.
func (q *Queue) TryPop() (protocol.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue) popLocked() (protocol.Message, bool) {
	if len(q.items) == 0 {
		return protocol.Message{}, false
	}
	m := q.items[0]
	q.items[0] = protocol.Message{}
	q.items = q.items[1:]
	return m, true
}

// Pop blocks until a message is available and removes it. With maxWait > 0 it
// gives up after maxWait and returns ok=false with a nil error, which callers
// use as a periodic tick.
func (q *Queue) Pop(ctx context.Context, maxWait time.Duration) (protocol.Message, bool, error) {
	var timeout <-chan time.Time
	if maxWait > 0 {
		t := time.NewTimer(maxWait)
		defer t.Stop()
		timeout = t.C
	}

	for {
		q.mu.Lock()
		if m, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return m, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			return protocol.Message{}, false, errors.Wrap(ErrClosed, q.name)
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return protocol.Message{}, false, ctx.Err()
		case <-timeout:
			return protocol.Message{}, false, nil
		case <-wake:
		}
	}
}

// TakeMatching removes and returns every matching message in queue order.
// Non-matching messages keep their relative order.
func (q *Queue) TakeMatching(match Match) []protocol.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeLocked(match, -1)
}

// TakeFirst removes the oldest matching message.
func (q *Queue) TakeFirst(match Match) (protocol.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	taken := q.takeLocked(match, 1)
	if len(taken) == 0 {
		return protocol.Message{}, false
	}
	return taken[0], true
}

func (q *Queue) takeLocked(match Match, limit int) []protocol.Message {
	var taken []protocol.Message
	kept := q.items[:0]
	for _, m := range q.items {
		if (limit < 0 || len(taken) < limit) && match(m) {
			taken = append(taken, m)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = protocol.Message{}
	}
	q.items = kept
	return taken
}

// WaitMatching blocks until a matching message can be taken.
func (q *Queue) WaitMatching(ctx context.Context, match Match) (protocol.Message, error) {
	for {
		q.mu.Lock()
		taken := q.takeLocked(match, 1)
		if len(taken) == 1 {
			q.mu.Unlock()
			return taken[0], nil
		}
		if q.closed {
			q.mu.Unlock()
			return protocol.Message{}, errors.Wrap(ErrClosed, q.name)
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return protocol.Message{}, ctx.Err()
		case <-wake:
		}
	}
}

// Drain removes everything.
func (q *Queue) Drain() []protocol.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Pair is the update/return queue pair of one dashboard session.
type Pair struct {
	Updates *Queue
	Returns *Queue
}

func NewPair() Pair {
	return Pair{Updates: New("updates"), Returns: New("returns")}
}

func (p Pair) Close() {
	p.Updates.Close()
	p.Returns.Close()
}
