package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/stream"
)

const suggestionsPrompt = "You are a writing assistant. Given a piece of writing, " +
	"suggest improvements focusing on clarity, coherence and overall quality. " +
	"Each suggestion replaces one full sentence with an improved version. " +
	"Provide at most five suggestions."

// suggestionsOutput is the structured shape requested from the model.
type suggestionsOutput struct {
	Suggestions []suggestionItem `json:"suggestions"`
}

type suggestionItem struct {
	OriginalSentence  string `json:"originalSentence" jsonschema_description:"The exact sentence to replace"`
	SuggestedSentence string `json:"suggestedSentence" jsonschema_description:"The improved sentence"`
	Description       string `json:"description" jsonschema_description:"Why the change improves the text"`
}

// RequestSuggestions generates edit suggestions for a text document,
// streams each one as a data frame and persists them as rows.
func (k *Kit) RequestSuggestions(ctx *ai.ToolContext, input RequestSuggestionsInput) (Result, error) {
	docID, err := uuid.Parse(input.DocumentID)
	if err != nil {
		return errorResult(ErrCodeInvalidInput, fmt.Sprintf("invalid document id %q", input.DocumentID)), nil
	}

	identity, ok := auth.IdentityFromContext(ctx.Context)
	if !ok {
		return errorResult(ErrCodeUnauthorized, "no authenticated user for suggestions"), nil
	}

	doc, err := k.store.LatestDocument(ctx.Context, docID)
	if err != nil {
		if err == chatstore.ErrNotFound {
			return errorResult(ErrCodeNotFound, fmt.Sprintf("document %s not found", docID)), nil
		}
		return errorResult(ErrCodeStorage, fmt.Sprintf("loading document: %v", err)), nil
	}
	if doc.Kind != chatstore.DocumentText || strings.HasPrefix(doc.Content, storageRefPrefix) {
		return errorResult(ErrCodeInvalidInput, "suggestions are only available for inline text documents"), nil
	}

	resp, err := genkit.Generate(ctx.Context, k.g,
		ai.WithModelName(model.GenkitName(model.DefaultChatModel)),
		ai.WithSystem(suggestionsPrompt),
		ai.WithPrompt(doc.Content),
		ai.WithOutputType(suggestionsOutput{}),
	)
	if err != nil {
		return errorResult(ErrCodeGeneration, fmt.Sprintf("generating suggestions: %v", err)), nil
	}

	var output suggestionsOutput
	if err := resp.Output(&output); err != nil {
		return errorResult(ErrCodeGeneration, fmt.Sprintf("decoding suggestions: %v", err)), nil
	}

	sink := stream.SinkFromContext(ctx.Context)
	rows := make([]*chatstore.Suggestion, 0, len(output.Suggestions))
	for _, item := range output.Suggestions {
		row := &chatstore.Suggestion{
			ID:            uuid.New(),
			DocumentID:    docID,
			UserID:        identity.UserID,
			OriginalText:  item.OriginalSentence,
			SuggestedText: item.SuggestedSentence,
			Description:   item.Description,
			CreatedAt:     time.Now(),
		}
		rows = append(rows, row)
		if sink != nil {
			_ = sink.Write(stream.Data(map[string]any{
				"type": "suggestion",
				"content": map[string]string{
					"id":            row.ID.String(),
					"documentId":    docID.String(),
					"originalText":  row.OriginalText,
					"suggestedText": row.SuggestedText,
					"description":   row.Description,
				},
			}))
		}
	}

	if err := k.store.SaveSuggestions(ctx.Context, rows); err != nil {
		return errorResult(ErrCodeStorage, fmt.Sprintf("saving suggestions: %v", err)), nil
	}

	k.logger.Info("suggestions generated", "document_id", docID, "count", len(rows))

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Added %d suggestions to the document.", len(rows)),
		Data: map[string]any{
			"id":    docID.String(),
			"title": doc.Title,
			"kind":  string(doc.Kind),
			"count": len(rows),
		},
	}, nil
}
