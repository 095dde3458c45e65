package control

import (
	"fmt"
	"sync"
	"time"

	"lazyview/pkg/lazy"
)

// Event is one recorded lazy-loading notification.
type Event struct {
	Seq     int       `json:"seq"`
	Element string    `json:"element"`
	Event   string    `json:"event"`
	Time    time.Time `json:"time"`
}

// EventLog is a lazy.Notifier that keeps the most recent events for the
// control API. Notify runs on the page loop; reads may come from any
// goroutine.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	next   int
	limit  int
	now    func() time.Time
}

// NewEventLog keeps at most limit events; zero means 1000.
func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = 1000
	}
	return &EventLog{limit: limit, now: time.Now}
}

func (l *EventLog) Notify(el lazy.Element, ev lazy.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.events = append(l.events, Event{
		Seq:     l.next,
		Element: describe(el),
		Event:   ev.String(),
		Time:    l.now(),
	})
	if over := len(l.events) - l.limit; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
}

// Since returns the events with a sequence number greater than seq.
func (l *EventLog) Since(seq int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, len(l.events))
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

func describe(el lazy.Element) string {
	if s, ok := el.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", el)
}
