// Package model holds the chat-model catalog: which models the service
// offers, their capabilities, and per-model tool policy.
package model

import "fmt"

// DefaultChatModel is used when a request does not name a model.
const DefaultChatModel = "gemini-2.5-flash"

// ChatModel describes one selectable chat model.
type ChatModel struct {
	ID          string
	Name        string
	Description string
	Family      string // "gemini-2.5" | "gemini-2.0" | "gemini-1.5"

	Multimodal      bool
	Thinking        bool
	FunctionCalling bool
}

// catalog is the full set of supported chat models.
var catalog = []ChatModel{
	{
		ID:          "gemini-2.5-pro",
		Name:        "Gemini 2.5 Pro",
		Description: "Most capable reasoning model",
		Family:      "gemini-2.5",
		Multimodal:  true, Thinking: true, FunctionCalling: true,
	},
	{
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Description: "Best price-performance model with adaptive thinking",
		Family:      "gemini-2.5",
		Multimodal:  true, Thinking: true, FunctionCalling: true,
	},
	{
		ID:          "gemini-2.5-flash-lite-preview-06-17",
		Name:        "Gemini 2.5 Flash Lite",
		Description: "Cost-efficient model with high throughput",
		Family:      "gemini-2.5",
		Multimodal:  true, Thinking: true, FunctionCalling: true,
	},
	{
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
		Description: "Next-gen features with superior speed and native tool use",
		Family:      "gemini-2.0",
		Multimodal:  true, FunctionCalling: true,
	},
	{
		ID:          "gemini-2.0-flash-lite",
		Name:        "Gemini 2.0 Flash Lite",
		Description: "Optimized for cost efficiency and low latency",
		Family:      "gemini-2.0",
		Multimodal:  true, FunctionCalling: true,
	},
	{
		ID:          "gemini-1.5-pro",
		Name:        "Gemini 1.5 Pro",
		Description: "Complex reasoning tasks requiring more intelligence",
		Family:      "gemini-1.5",
		Multimodal:  true, FunctionCalling: true,
	},
	{
		ID:          "gemini-1.5-flash",
		Name:        "Gemini 1.5 Flash",
		Description: "Fast and versatile performance across diverse tasks",
		Family:      "gemini-1.5",
		Multimodal:  true, FunctionCalling: true,
	},
	{
		ID:          "gemini-1.5-flash-8b",
		Name:        "Gemini 1.5 Flash-8B",
		Description: "Small model for high volume tasks",
		Family:      "gemini-1.5",
		Multimodal:  true, FunctionCalling: true,
	},
}

// TitleModel is the fast model used for chat title generation.
const TitleModel = "gemini-2.0-flash-lite"

// Lookup returns the catalog entry for id.
func Lookup(id string) (ChatModel, error) {
	for _, m := range catalog {
		if m.ID == id {
			return m, nil
		}
	}
	return ChatModel{}, fmt.Errorf("unsupported chat model %q", id)
}

// IsSupported reports whether id names a catalog model.
func IsSupported(id string) bool {
	_, err := Lookup(id)
	return err == nil
}

// SupportedIDs returns all catalog model ids in catalog order.
func SupportedIDs() []string {
	ids := make([]string, len(catalog))
	for i, m := range catalog {
		ids[i] = m.ID
	}
	return ids
}

// All returns the full catalog.
func All() []ChatModel {
	out := make([]ChatModel, len(catalog))
	copy(out, catalog)
	return out
}

// GenkitName maps a catalog id to the registered genkit model name.
func GenkitName(id string) string {
	return "googleai/" + id
}

// ToolsEnabled reports whether the model runs with the full tool set.
// gemini-2.5-pro runs in a restricted mode with an empty active-tool
// set; every other catalog model gets the full set.
func ToolsEnabled(id string) bool {
	return id != "gemini-2.5-pro"
}
