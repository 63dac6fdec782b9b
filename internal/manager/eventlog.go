package manager

import (
	"sync"
	"time"
)

// EventLog keeps the most recent runtime events for status reports. It is an
// EventPublisher and is safe for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	limit  int
	events []Event
	now    func() time.Time
}

// NewEventLog keeps the last limit events. A non-positive limit keeps all.
func NewEventLog(limit int) *EventLog {
	return &EventLog{limit: limit, now: time.Now}
}

func (l *EventLog) Publish(e Event) {
	if e.At.IsZero() {
		e.At = l.now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	if l.limit > 0 && len(l.events) > l.limit {
		// shift in place so the backing array does not grow
		n := copy(l.events, l.events[len(l.events)-l.limit:])
		clear(l.events[n:])
		l.events = l.events[:n]
	}
}

// Events returns the kept events, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Names returns the kept event names, oldest first.
func (l *EventLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Name
	}
	return out
}
