package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/chatstore"
)

func TestToAIMessagesSplitsAssistantToolTurns(t *testing.T) {
	chatID := uuid.New()
	msgs := []*chatstore.Message{
		{
			ChatID: chatID,
			Role:   chatstore.RoleUser,
			Parts:  []chatstore.Part{{Type: chatstore.PartText, Text: "weather in berlin?"}},
			Attachments: []chatstore.Attachment{
				{URL: "https://example.com/map.png", ContentType: "image/png"},
			},
		},
		{
			ChatID: chatID,
			Role:   chatstore.RoleAssistant,
			Parts: []chatstore.Part{
				{Type: chatstore.PartToolCall, CallID: "c1", ToolName: "getWeather",
					Input: json.RawMessage(`{"latitude":52.5}`)},
				{Type: chatstore.PartToolResult, CallID: "c1", ToolName: "getWeather",
					Output: json.RawMessage(`{"temperature":18.3}`)},
				{Type: chatstore.PartText, Text: "It is 18 degrees."},
			},
		},
	}

	out := toAIMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("messages = %d, want user + model + tool", len(out))
	}

	if out[0].Role != ai.RoleUser || len(out[0].Content) != 2 {
		t.Errorf("user message = %+v, want text part and media part", out[0])
	}

	if out[1].Role != ai.RoleModel {
		t.Fatalf("second message role = %q, want model", out[1].Role)
	}
	foundCall := false
	for _, p := range out[1].Content {
		if p.ToolRequest != nil {
			foundCall = true
			if p.ToolRequest.Ref != "c1" || p.ToolRequest.Name != "getWeather" {
				t.Errorf("tool request = %+v", p.ToolRequest)
			}
		}
	}
	if !foundCall {
		t.Error("model message missing tool request part")
	}

	if out[2].Role != ai.RoleTool || len(out[2].Content) != 1 || out[2].Content[0].ToolResponse == nil {
		t.Errorf("tool message = %+v, want single tool response", out[2])
	}
}

func TestMergeAssistantTurnRoundTrip(t *testing.T) {
	emitted := []*ai.Message{
		{Role: ai.RoleModel, Content: []*ai.Part{
			{Kind: ai.PartReasoning, Text: "the user wants the forecast"},
			{Kind: ai.PartToolRequest, ToolRequest: &ai.ToolRequest{
				Ref: "c1", Name: "getWeather", Input: map[string]any{"latitude": 52.5},
			}},
		}},
		{Role: ai.RoleTool, Content: []*ai.Part{
			{Kind: ai.PartToolResponse, ToolResponse: &ai.ToolResponse{
				Ref: "c1", Name: "getWeather", Output: map[string]any{"temperature": 18.3},
			}},
		}},
		{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("It is 18 degrees.")}},
	}

	parts, ok := mergeAssistantTurn(emitted)
	if !ok {
		t.Fatal("mergeAssistantTurn reported no assistant turn")
	}
	wantTypes := []chatstore.PartType{
		chatstore.PartReasoning,
		chatstore.PartToolCall,
		chatstore.PartToolResult,
		chatstore.PartText,
	}
	if len(parts) != len(wantTypes) {
		t.Fatalf("parts = %d, want %d", len(parts), len(wantTypes))
	}
	for i, want := range wantTypes {
		if parts[i].Type != want {
			t.Errorf("parts[%d].Type = %q, want %q", i, parts[i].Type, want)
		}
	}
	if string(parts[1].Input) != `{"latitude":52.5}` {
		t.Errorf("tool call input = %s", parts[1].Input)
	}
}

func TestMergeAssistantTurnNoModelMessage(t *testing.T) {
	emitted := []*ai.Message{
		{Role: ai.RoleTool, Content: []*ai.Part{
			{Kind: ai.PartToolResponse, ToolResponse: &ai.ToolResponse{Ref: "c1", Name: "x"}},
		}},
	}
	if _, ok := mergeAssistantTurn(emitted); ok {
		t.Error("mergeAssistantTurn found assistant turn in tool-only transcript")
	}
	if _, ok := mergeAssistantTurn(nil); ok {
		t.Error("mergeAssistantTurn found assistant turn in empty transcript")
	}
}

func TestMessagesAfterLastUser(t *testing.T) {
	final := &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("answer")}}
	resp := &ai.ModelResponse{
		Request: &ai.ModelRequest{Messages: []*ai.Message{
			{Role: ai.RoleSystem, Content: []*ai.Part{ai.NewTextPart("be brief")}},
			{Role: ai.RoleUser, Content: []*ai.Part{ai.NewTextPart("first")}},
			{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("old answer")}},
			{Role: ai.RoleUser, Content: []*ai.Part{ai.NewTextPart("second")}},
			{Role: ai.RoleModel, Content: []*ai.Part{{
				Kind:        ai.PartToolRequest,
				ToolRequest: &ai.ToolRequest{Ref: "c1", Name: "webSearch"},
			}}},
			{Role: ai.RoleTool, Content: []*ai.Part{{
				Kind:         ai.PartToolResponse,
				ToolResponse: &ai.ToolResponse{Ref: "c1", Name: "webSearch"},
			}}},
		}},
		Message: final,
	}

	emitted := messagesAfterLastUser(resp)
	if len(emitted) != 3 {
		t.Fatalf("emitted = %d messages, want tool round + final", len(emitted))
	}
	if emitted[len(emitted)-1] != final {
		t.Error("final response message not last")
	}

	// History before the last user turn is never re-persisted.
	for _, m := range emitted {
		for _, p := range m.Content {
			if p.Text == "old answer" || p.Text == "first" {
				t.Errorf("emitted includes prior history: %+v", m)
			}
		}
	}
}
