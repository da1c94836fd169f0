package orchestrator

import (
	"encoding/json"

	"github.com/firebase/genkit/go/ai"

	"github.com/parley-ai/parley/internal/chatstore"
)

// toAIMessages converts stored chat turns into the genkit message form.
// An assistant turn holding tool calls and results is split back into the
// model/tool message pair the provider API expects.
func toAIMessages(msgs []*chatstore.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case chatstore.RoleUser:
			out = append(out, &ai.Message{Role: ai.RoleUser, Content: userParts(msg)})
		case chatstore.RoleSystem:
			out = append(out, &ai.Message{Role: ai.RoleSystem, Content: textParts(msg.Parts)})
		case chatstore.RoleAssistant:
			model, tool := assistantParts(msg.Parts)
			if len(model) > 0 {
				out = append(out, &ai.Message{Role: ai.RoleModel, Content: model})
			}
			if len(tool) > 0 {
				out = append(out, &ai.Message{Role: ai.RoleTool, Content: tool})
			}
		}
	}
	return out
}

func userParts(msg *chatstore.Message) []*ai.Part {
	parts := textParts(msg.Parts)
	for _, att := range msg.Attachments {
		parts = append(parts, ai.NewMediaPart(att.ContentType, att.URL))
	}
	return parts
}

func textParts(parts []chatstore.Part) []*ai.Part {
	out := make([]*ai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Type == chatstore.PartText && p.Text != "" {
			out = append(out, ai.NewTextPart(p.Text))
		}
	}
	return out
}

func assistantParts(parts []chatstore.Part) (model, tool []*ai.Part) {
	for _, p := range parts {
		switch p.Type {
		case chatstore.PartText:
			if p.Text != "" {
				model = append(model, ai.NewTextPart(p.Text))
			}
		case chatstore.PartReasoning:
			if p.Text != "" {
				model = append(model, &ai.Part{Kind: ai.PartReasoning, Text: p.Text})
			}
		case chatstore.PartToolCall:
			model = append(model, &ai.Part{
				Kind: ai.PartToolRequest,
				ToolRequest: &ai.ToolRequest{
					Ref:   p.CallID,
					Name:  p.ToolName,
					Input: rawToAny(p.Input),
				},
			})
		case chatstore.PartToolResult:
			tool = append(tool, &ai.Part{
				Kind: ai.PartToolResponse,
				ToolResponse: &ai.ToolResponse{
					Ref:    p.CallID,
					Name:   p.ToolName,
					Output: rawToAny(p.Output),
				},
			})
		}
	}
	return model, tool
}

// mergeAssistantTurn folds the messages a generation emitted into the
// ordered part list of one stored assistant turn. Returns false if no
// model-role message was emitted, so the caller can skip persistence.
func mergeAssistantTurn(emitted []*ai.Message) ([]chatstore.Part, bool) {
	var parts []chatstore.Part
	hasAssistant := false

	for _, msg := range emitted {
		switch msg.Role {
		case ai.RoleModel:
			hasAssistant = true
			for _, p := range msg.Content {
				switch {
				case p.ToolRequest != nil:
					parts = append(parts, chatstore.Part{
						Type:     chatstore.PartToolCall,
						CallID:   p.ToolRequest.Ref,
						ToolName: p.ToolRequest.Name,
						Input:    anyToRaw(p.ToolRequest.Input),
					})
				case p.Kind == ai.PartReasoning:
					if p.Text != "" {
						parts = append(parts, chatstore.Part{Type: chatstore.PartReasoning, Text: p.Text})
					}
				case p.Text != "":
					parts = append(parts, chatstore.Part{Type: chatstore.PartText, Text: p.Text})
				}
			}
		case ai.RoleTool:
			for _, p := range msg.Content {
				if p.ToolResponse == nil {
					continue
				}
				parts = append(parts, chatstore.Part{
					Type:     chatstore.PartToolResult,
					CallID:   p.ToolResponse.Ref,
					ToolName: p.ToolResponse.Name,
					Output:   anyToRaw(p.ToolResponse.Output),
				})
			}
		}
	}
	return parts, hasAssistant
}

// messagesAfterLastUser returns the slice of the request transcript that
// the current generation produced: everything after the final user
// message, plus the response message itself.
func messagesAfterLastUser(resp *ai.ModelResponse) []*ai.Message {
	var transcript []*ai.Message
	if resp.Request != nil {
		transcript = resp.Request.Messages
	}

	lastUser := -1
	for i, msg := range transcript {
		if msg.Role == ai.RoleUser {
			lastUser = i
		}
	}

	emitted := make([]*ai.Message, 0, len(transcript)-lastUser)
	emitted = append(emitted, transcript[lastUser+1:]...)
	if resp.Message != nil {
		if len(emitted) == 0 || emitted[len(emitted)-1] != resp.Message {
			emitted = append(emitted, resp.Message)
		}
	}
	return emitted
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func anyToRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
