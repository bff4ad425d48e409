package ws

import (
	"slices"
	"sync"
	"time"
)

const (
	defaultBufferMaxLen = 1000
	defaultBufferMaxAge = time.Hour
)

// EventBuffer keeps the most recent events so reconnecting clients can
// catch up. Events are appended in increasing ID order.
type EventBuffer struct {
	maxLen int
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	events []Event
	lastID uint64
}

// NewEventBuffer keeps at most maxLen events, none older than maxAge.
func NewEventBuffer(maxLen int, maxAge time.Duration) *EventBuffer {
	return &EventBuffer{maxLen: maxLen, maxAge: maxAge, now: time.Now}
}

// Append adds event and drops whatever has aged out or overflowed.
func (eb *EventBuffer) Append(event *Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	cutoff := eb.now().Add(-eb.maxAge)
	expired := slices.IndexFunc(eb.events, func(e Event) bool { return !e.Time.Before(cutoff) })
	if expired < 0 {
		expired = len(eb.events)
	}

	eb.events = append(eb.events[expired:], *event)
	if over := len(eb.events) - eb.maxLen; over > 0 {
		eb.events = eb.events[over:]
	}
	eb.lastID = event.ID
}

// Replay returns a copy of the events after afterID. complete is false when
// some of those events have already been dropped, so the caller cannot
// resume without a gap. afterID 0 asks for no replay.
func (eb *EventBuffer) Replay(afterID uint64) (events []Event, complete bool) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if afterID == 0 || afterID >= eb.lastID {
		return nil, true
	}

	if len(eb.events) == 0 || eb.events[0].ID > afterID+1 {
		return nil, false
	}

	i, _ := slices.BinarySearchFunc(eb.events, afterID+1, func(e Event, id uint64) int {
		switch {
		case e.ID < id:
			return -1
		case e.ID > id:
			return 1
		}
		return 0
	})

	return slices.Clone(eb.events[i:]), true
}
