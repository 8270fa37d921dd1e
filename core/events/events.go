package events

import "sync"

// Event is the structured record emitted by the native engines whenever a
// state transition commits. Attributes are flat string pairs so downstream
// consumers (webhooks, indexers, audit exports) can ingest them without
// module-specific decoding.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter receives committed events. Implementations must not block; engines
// emit after persistence and do not observe emitter failures.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events. Engines default to it so event wiring is
// always optional.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// Recorder captures emitted events in order. Intended for tests and for the
// gateway's recent-activity feed.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Emit appends the event to the recorded sequence.
func (r *Recorder) Emit(evt Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded sequence.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
