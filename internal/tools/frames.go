package tools

import (
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/stream"
)

// WithCallFrames wraps a typed tool handler to announce its lifecycle on
// the active output stream.
//
// The wrapper:
//  1. Retrieves the sink from context (nil for non-streaming calls)
//  2. Writes a tool-call frame with a fresh call id before execution
//  3. Calls the original handler
//  4. Writes a tool-result frame carrying the handler's result
//
// The tool-call frame always precedes the matching tool-result frame; the
// sink serializes concurrent writers. Without a sink in context the
// wrapper passes straight through.
func WithCallFrames[In any](name string, fn func(*ai.ToolContext, In) (Result, error)) func(*ai.ToolContext, In) (Result, error) {
	return func(ctx *ai.ToolContext, input In) (Result, error) {
		sink := stream.SinkFromContext(ctx.Context)
		if sink == nil {
			return fn(ctx, input)
		}

		callID := uuid.NewString()

		// A marshal failure only costs the frame its input echo.
		raw, err := json.Marshal(input)
		if err != nil {
			raw = nil
		}
		_ = sink.Write(stream.Frame{
			Type:    stream.FrameToolCall,
			Payload: stream.ToolCall{CallID: callID, ToolName: name, Input: raw},
		})

		result, err := fn(ctx, input)

		_ = sink.Write(stream.Frame{
			Type:    stream.FrameToolResult,
			Payload: stream.ToolResult{CallID: callID, ToolName: name, Output: result},
		})
		return result, err
	}
}
