package speech

import (
	"context"
	"sync"

	"github.com/teslashibe/go-wayfinder/internal/text"
)

// Event is one call recorded by a Recorder.
type Event struct {
	Kind string // "speak" or "stop"
	Text string
}

// Recorder implements Sink for testing. Speak records the cleaned phrase;
// only explicit Stop calls are recorded as stops.
type Recorder struct {
	mu     sync.Mutex
	events []Event

	// Err, if set, is returned from Speak.
	Err error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Speak records the phrase.
func (r *Recorder) Speak(ctx context.Context, raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	phrase := text.StripHTML(raw)
	if phrase == "" {
		return nil
	}
	r.events = append(r.events, Event{Kind: "speak", Text: phrase})
	return nil
}

// Stop records an explicit stop.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "stop"})
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Spoken returns the phrases in the order they were spoken.
func (r *Recorder) Spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == "speak" {
			out = append(out, e.Text)
		}
	}
	return out
}

// Last returns the most recent phrase, or "" if none.
func (r *Recorder) Last() string {
	spoken := r.Spoken()
	if len(spoken) == 0 {
		return ""
	}
	return spoken[len(spoken)-1]
}

// Reset clears recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Verify Recorder implements Sink at compile time.
var _ Sink = (*Recorder)(nil)
