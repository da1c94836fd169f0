package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Sink receives frames in write order. Implementations must be safe for
// concurrent use; the orchestrator and stream-writing tools share one sink.
type Sink interface {
	Write(frame Frame) error
}

// SSESink serializes frames onto an HTTP response as Server-Sent Events,
// one event per frame with the frame type as the event name.
//
// After the first write failure (typically a disconnected client) the sink
// drops all subsequent frames without error, so generation and persistence
// can run to completion regardless of the client.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	broken  bool
}

// NewSSESink sets SSE headers and returns a sink over w. Returns an error
// if the writer cannot flush.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &SSESink{w: w, flusher: flusher}, nil
}

// Write implements Sink. The payload is marshaled to a single JSON line,
// so no multi-line data framing is needed.
func (s *SSESink) Write(frame Frame) error {
	data, err := json.Marshal(frame.Payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", frame.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken {
		return nil
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", frame.Type, data); err != nil {
		s.broken = true
		return nil
	}
	s.flusher.Flush()
	return nil
}

// Broken reports whether a write has failed and frames are being dropped.
func (s *SSESink) Broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}
