package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/parley-ai/parley/internal/model"
)

// ActiveRefs resolves the active tool set for a chat model. A model
// running in restricted mode gets an empty set; generation then proceeds
// without tool calling.
func ActiveRefs(g *genkit.Genkit, modelID string) []ai.ToolRef {
	if !model.ToolsEnabled(modelID) {
		return nil
	}
	refs := make([]ai.ToolRef, 0, len(toolNames))
	for _, name := range toolNames {
		if tool := genkit.LookupTool(g, name); tool != nil {
			refs = append(refs, tool)
		}
	}
	return refs
}
