// Package stream implements the ordered frame channel a chat response is
// streamed over. Model deltas, tool lifecycle events and tool-produced data
// are multiplexed onto a single sink; consumers observe frames in write
// order and reconstruct one linear transcript from them.
package stream

import "encoding/json"

// FrameType identifies what a frame carries.
type FrameType string

const (
	FrameTextDelta      FrameType = "text-delta"
	FrameReasoningDelta FrameType = "reasoning-delta"
	FrameToolCall       FrameType = "tool-call"
	FrameToolResult     FrameType = "tool-result"
	FrameData           FrameType = "data"
	FrameError          FrameType = "error"
)

// Frame is one unit written to the output channel. Payload must be
// JSON-marshalable.
type Frame struct {
	Type    FrameType
	Payload any
}

// Delta is the payload of text-delta and reasoning-delta frames.
type Delta struct {
	Delta string `json:"delta"`
}

// ToolCall announces that the model requested a tool invocation. It is
// always written before the matching ToolResult with the same call id.
type ToolCall struct {
	CallID   string          `json:"callId"`
	ToolName string          `json:"toolName"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// ToolResult carries the outcome of a tool invocation. Tool failures are
// contained inside the result payload rather than aborting the stream.
type ToolResult struct {
	CallID   string `json:"callId"`
	ToolName string `json:"toolName"`
	Output   any    `json:"output"`
}

// ErrorFrame is the terminal payload written when generation fails after
// the response has already committed to streaming.
type ErrorFrame struct {
	Message string `json:"message"`
}

// TextDelta builds a text-delta frame.
func TextDelta(text string) Frame {
	return Frame{Type: FrameTextDelta, Payload: Delta{Delta: text}}
}

// ReasoningDelta builds a reasoning-delta frame.
func ReasoningDelta(text string) Frame {
	return Frame{Type: FrameReasoningDelta, Payload: Delta{Delta: text}}
}

// Data builds a data frame with an opaque tool-produced payload.
func Data(payload any) Frame {
	return Frame{Type: FrameData, Payload: payload}
}

// Error builds a terminal error frame.
func Error(message string) Frame {
	return Frame{Type: FrameError, Payload: ErrorFrame{Message: message}}
}
