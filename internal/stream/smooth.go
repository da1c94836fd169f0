package stream

import "strings"

// Smoother re-chunks model text deltas at word boundaries before they
// reach the sink. Models emit deltas at arbitrary token boundaries; word
// chunks render more evenly on the client. Latency shaping only, the
// concatenated output is byte-identical to the input.
//
// Not safe for concurrent use; the generation callback is the only writer.
type Smoother struct {
	sink  Sink
	frame func(string) Frame
	buf   strings.Builder
}

// NewSmoother returns a Smoother that wraps each emitted chunk with frame
// and writes it to sink.
func NewSmoother(sink Sink, frame func(string) Frame) *Smoother {
	return &Smoother{sink: sink, frame: frame}
}

// Write buffers text and emits complete words. A word is complete once
// trailing whitespace after it has arrived, so the final partial word
// stays buffered until Flush.
func (s *Smoother) Write(text string) error {
	s.buf.WriteString(text)

	pending := s.buf.String()
	cut := lastWordBoundary(pending)
	if cut == 0 {
		return nil
	}

	s.buf.Reset()
	s.buf.WriteString(pending[cut:])
	return s.sink.Write(s.frame(pending[:cut]))
}

// Flush emits any buffered partial word. Call once when the delta stream
// ends.
func (s *Smoother) Flush() error {
	if s.buf.Len() == 0 {
		return nil
	}
	pending := s.buf.String()
	s.buf.Reset()
	return s.sink.Write(s.frame(pending))
}

// lastWordBoundary returns the end of the last complete word-plus-space
// run in text, or 0 if no word has been terminated yet.
func lastWordBoundary(text string) int {
	cut := 0
	inSpace := false
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inSpace = true
			continue
		}
		if inSpace {
			cut = i
			inSpace = false
		}
	}
	if inSpace {
		cut = len(text)
	}
	return cut
}
