package events

import "sync"

// Persister durably records an event under its sequence number.
type Persister interface {
	Append(seq int64, event Event) error
}

// EventLog is the in-memory append-only log of cage events.
// Events stay in the log until a consumer drains them.
type EventLog struct {
	mu        sync.Mutex
	pending   []Event
	seq       int64
	persister Persister
	onError   func(error)
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister Persister) *EventLog {
	return &EventLog{
		pending:   make([]Event, 0),
		persister: persister,
	}
}

// OnPersistError installs a callback for write-through failures.
// Failures never block or drop the in-memory event.
func (el *EventLog) OnPersistError(fn func(error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event Event) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.seq++
	el.pending = append(el.pending, event)

	if el.persister != nil {
		// Written synchronously so the transcript keeps tick order.
		if err := el.persister.Append(el.seq, event); err != nil && el.onError != nil {
			el.onError(err)
		}
	}
}

// Len returns the number of undrained events.
func (el *EventLog) Len() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.pending)
}

// Seq returns the number of events ever appended.
func (el *EventLog) Seq() int64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.seq
}

// Drain removes and returns every undrained event in append order.
func (el *EventLog) Drain() []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	out := el.pending
	el.pending = make([]Event, 0, len(out))
	return out
}

// DrainFrom works like Drain and also returns the sequence number of the first event.
func (el *EventLog) DrainFrom() (int64, []Event) {
	el.mu.Lock()
	defer el.mu.Unlock()
	out := el.pending
	first := el.seq - int64(len(out)) + 1
	el.pending = make([]Event, 0, len(out))
	return first, out
}

// Replay returns a copy of the undrained events without consuming them.
func (el *EventLog) Replay() []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	out := make([]Event, len(el.pending))
	copy(out, el.pending)
	return out
}

// GetByType returns the undrained events of a given type.
func (el *EventLog) GetByType(t EventType) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	var result []Event
	for _, e := range el.pending {
		if e.Type() == t {
			result = append(result, e)
		}
	}
	return result
}
