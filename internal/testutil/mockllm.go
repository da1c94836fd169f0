package testutil

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockStep is one scripted model invocation.
type MockStep struct {
	// Chunks are streamed to the callback before the response is returned.
	Chunks []*ai.ModelResponseChunk

	// Parts form the final model message. A part with a ToolRequest makes
	// genkit run the tool and invoke the model again with its result.
	Parts []*ai.Part

	// Err aborts the invocation instead of returning a response.
	Err error
}

// MockModel plays back a script of responses, one per model invocation.
// When the script runs out the last step repeats. Thread-safe.
type MockModel struct {
	mu       sync.Mutex
	script   []MockStep
	calls    []*ai.ModelRequest
	position int
}

// NewMockModel creates an empty mock; add steps with Enqueue.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// Enqueue appends a step to the script.
func (m *MockModel) Enqueue(step MockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step)
}

// EnqueueText is shorthand for a step that streams and returns plain text.
func (m *MockModel) EnqueueText(text string) {
	m.Enqueue(MockStep{
		Chunks: []*ai.ModelResponseChunk{{Content: []*ai.Part{ai.NewTextPart(text)}}},
		Parts:  []*ai.Part{ai.NewTextPart(text)},
	})
}

// Calls returns the recorded model requests in invocation order.
func (m *MockModel) Calls() []*ai.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*ai.ModelRequest, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Register defines the mock under the given genkit model name
// (e.g. "googleai/gemini-2.5-flash") so production code paths resolve it
// without the real plugin.
func (m *MockModel) Register(g *genkit.Genkit, name string) ai.Model {
	return genkit.DefineModel(g, name, &ai.ModelOptions{
		Label: "Scripted Mock Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      true,
		},
	}, m.generate)
}

func (m *MockModel) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	if len(m.script) == 0 {
		m.mu.Unlock()
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("ok")}},
		}, nil
	}
	step := m.script[m.position]
	if m.position < len(m.script)-1 {
		m.position++
	}
	m.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}

	if cb != nil {
		for _, chunk := range step.Chunks {
			if err := cb(ctx, chunk); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{Role: ai.RoleModel, Content: step.Parts},
	}, nil
}
