package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// Kind tags an Event. A run emits zero or more Log events, at most one
// intermediate Result per stage, and exactly one terminal Complete or Error.
type Kind string

const (
	KindLog      Kind = "log"
	KindResult   Kind = "result"
	KindError    Kind = "error"
	KindComplete Kind = "complete"
)

// Event is one record of the progress stream. Message is set for log and
// error events, Payload for result and complete events.
type Event struct {
	Type    Kind   `json:"type"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Log builds a log event.
func Log(message string) Event {
	return Event{Type: KindLog, Message: message}
}

// Result builds an intermediate result event carrying a stage payload.
func Result(payload any) Event {
	return Event{Type: KindResult, Payload: payload}
}

// Error builds a terminal error event.
func Error(message string) Event {
	return Event{Type: KindError, Message: message}
}

// Complete builds the terminal success event carrying the final payload.
func Complete(payload any) Event {
	return Event{Type: KindComplete, Payload: payload}
}

// Emitter delivers one event to the caller. Implementations must be safe for
// concurrent use: worker pools emit progress from multiple goroutines.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Writer emits events as newline-delimited JSON records. Each record is
// flushed before Emit returns, so events produced before a blocking network
// call reach the caller before the call blocks.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher (or exposes one via the
// flusher argument), every record is flushed on write.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// Emit serializes the event as one JSON line. A record that fails to
// serialize is replaced by an error record rather than silently dropped.
func (sw *Writer) Emit(ev Event) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		data, _ = json.Marshal(Event{Type: KindError, Message: "event serialization failed"})
	}

	if _, err := sw.w.Write(append(data, '\n')); err != nil {
		// The caller hung up; nothing useful to do with the event.
		return
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}
