package eventbus

import (
	"fmt"
	"sync"
	"time"
)

// LogEntry is one line kept by a Ring.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Topic   Topic     `json:"topic"`
	Message string    `json:"message"`
}

// Ring keeps the most recent events of the topics it is attached to.
type Ring struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 100
	}
	return &Ring{entries: make([]LogEntry, size)}
}

// Attach subscribes the ring to the given topics on bus.
func (r *Ring) Attach(bus *Bus, topics ...Topic) {
	for _, t := range topics {
		bus.Subscribe(t, r.Record)
	}
}

// Record stores an event, overwriting the oldest entry when full.
func (r *Ring) Record(e Event) {
	entry := LogEntry{Time: e.Timestamp, Topic: e.Topic, Message: describe(e.Payload)}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns the stored entries oldest first.
func (r *Ring) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]LogEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

func describe(payload any) string {
	switch p := payload.(type) {
	case string:
		return p
	case error:
		return p.Error()
	case TurnEvent:
		msg := fmt.Sprintf("%s user=%s", p.Stage, p.UserID)
		if p.ConversationID != "" {
			msg += " conversation=" + p.ConversationID
		}
		if p.Detail != "" {
			msg += ": " + p.Detail
		}
		return msg
	case StatusEvent:
		return p.Component + " " + p.Status
	default:
		return fmt.Sprint(p)
	}
}
