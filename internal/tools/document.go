package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/stream"
)

// storageRefPrefix marks document content that lives in the blob store
// instead of inline in the row.
const storageRefPrefix = "storage:"

const (
	textPrompt = "Write about the given topic. Markdown is supported. " +
		"Use headings wherever appropriate."

	codePrompt = "You are a code generator that creates self-contained, executable code " +
		"snippets. The snippet should be complete and runnable on its own, use print " +
		"statements to display output, include helpful comments, and avoid interactive " +
		"input or external dependencies."

	sheetPrompt = "Create a spreadsheet in csv format based on the given prompt. " +
		"The spreadsheet should contain meaningful column headers and rows of data."
)

// CreateDocument generates a new document artifact. Content is produced by
// a nested generation (or the image model for image documents), streamed
// to the client as data frames, and persisted under the calling user.
func (k *Kit) CreateDocument(ctx *ai.ToolContext, input CreateDocumentInput) (Result, error) {
	kind := chatstore.DocumentKind(input.Kind)
	if !kind.Valid() {
		return errorResult(ErrCodeInvalidInput, fmt.Sprintf("unknown document kind %q", input.Kind)), nil
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return errorResult(ErrCodeInvalidInput, "document title is empty"), nil
	}

	identity, ok := auth.IdentityFromContext(ctx.Context)
	if !ok {
		return errorResult(ErrCodeUnauthorized, "no authenticated user for document creation"), nil
	}

	docID := uuid.New()
	sink := stream.SinkFromContext(ctx.Context)
	emitArtifact(sink, "kind", string(kind))
	emitArtifact(sink, "id", docID.String())
	emitArtifact(sink, "title", title)
	emitArtifact(sink, "clear", "")

	content, err := k.generateContent(ctx.Context, sink, kind, title, "")
	if err != nil {
		k.logger.Error("document generation failed", "document_id", docID, "kind", kind, "error", err)
		return errorResult(ErrCodeGeneration, fmt.Sprintf("generating document content: %v", err)), nil
	}
	content = k.storeOversized(ctx.Context, docID, kind, content)

	doc := &chatstore.Document{
		ID:        docID,
		UserID:    identity.UserID,
		Title:     title,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := k.store.SaveDocument(ctx.Context, doc); err != nil {
		k.logger.Error("document save failed", "document_id", docID, "error", err)
		return errorResult(ErrCodeStorage, fmt.Sprintf("saving document: %v", err)), nil
	}
	emitArtifact(sink, "finish", "")

	k.logger.Info("document created", "document_id", docID, "kind", kind, "user_id", identity.UserID)

	return Result{
		Status:  StatusSuccess,
		Message: "A document was created and is now visible to the user.",
		Data: map[string]any{
			"id":    docID.String(),
			"title": title,
			"kind":  string(kind),
		},
	}, nil
}

// UpdateDocument regenerates an existing document following the change
// description and persists the result as a new version.
func (k *Kit) UpdateDocument(ctx *ai.ToolContext, input UpdateDocumentInput) (Result, error) {
	docID, err := uuid.Parse(input.ID)
	if err != nil {
		return errorResult(ErrCodeInvalidInput, fmt.Sprintf("invalid document id %q", input.ID)), nil
	}

	identity, ok := auth.IdentityFromContext(ctx.Context)
	if !ok {
		return errorResult(ErrCodeUnauthorized, "no authenticated user for document update"), nil
	}

	current, err := k.store.LatestDocument(ctx.Context, docID)
	if err != nil {
		if err == chatstore.ErrNotFound {
			return errorResult(ErrCodeNotFound, fmt.Sprintf("document %s not found", docID)), nil
		}
		return errorResult(ErrCodeStorage, fmt.Sprintf("loading document: %v", err)), nil
	}

	sink := stream.SinkFromContext(ctx.Context)
	emitArtifact(sink, "kind", string(current.Kind))
	emitArtifact(sink, "id", docID.String())
	emitArtifact(sink, "title", current.Title)
	emitArtifact(sink, "clear", "")

	prior := current.Content
	if strings.HasPrefix(prior, storageRefPrefix) {
		// Oversized content lives in the blob store; regenerate from the
		// description alone rather than pulling megabytes into the prompt.
		prior = ""
	}

	content, err := k.generateContent(ctx.Context, sink, current.Kind, input.Description, prior)
	if err != nil {
		k.logger.Error("document regeneration failed", "document_id", docID, "error", err)
		return errorResult(ErrCodeGeneration, fmt.Sprintf("updating document content: %v", err)), nil
	}
	content = k.storeOversized(ctx.Context, docID, current.Kind, content)

	doc := &chatstore.Document{
		ID:        docID,
		UserID:    identity.UserID,
		Title:     current.Title,
		Kind:      current.Kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := k.store.SaveDocument(ctx.Context, doc); err != nil {
		return errorResult(ErrCodeStorage, fmt.Sprintf("saving document version: %v", err)), nil
	}
	emitArtifact(sink, "finish", "")

	k.logger.Info("document updated", "document_id", docID, "kind", current.Kind)

	return Result{
		Status:  StatusSuccess,
		Message: "The document has been updated and is now visible to the user.",
		Data: map[string]any{
			"id":    docID.String(),
			"title": current.Title,
			"kind":  string(current.Kind),
		},
	}, nil
}

// generateContent produces document content for a kind. Text-like kinds
// stream deltas to the sink as they are generated; images return the
// base64 payload from the image model.
func (k *Kit) generateContent(ctx context.Context, sink stream.Sink, kind chatstore.DocumentKind, prompt, prior string) (string, error) {
	if kind == chatstore.DocumentImage {
		return k.generateImage(ctx, sink, prompt)
	}

	var system, deltaType string
	switch kind {
	case chatstore.DocumentCode:
		system, deltaType = codePrompt, "code-delta"
	case chatstore.DocumentSheet:
		system, deltaType = sheetPrompt, "sheet-delta"
	default:
		system, deltaType = textPrompt, "text-delta"
	}
	if prior != "" {
		system = fmt.Sprintf("Improve the following contents of the document based on the given prompt.\n\n%s", prior)
	}

	resp, err := genkit.Generate(ctx, k.g,
		ai.WithModelName(model.GenkitName(model.DefaultChatModel)),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				emitArtifact(sink, deltaType, text)
			}
			return nil
		}),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// generateImage requests a base64 image from the external image model. The
// raw payload always goes to the client as a data frame regardless of how
// it is stored.
func (k *Kit) generateImage(ctx context.Context, sink stream.Sink, prompt string) (string, error) {
	if k.image == nil {
		return "", fmt.Errorf("no image model configured")
	}

	resp, err := k.image.CreateImage(ctx, openai.ImageRequest{
		Model:          k.imageModel,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("image model: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("image model returned no data")
	}

	b64 := resp.Data[0].B64JSON
	emitArtifact(sink, "image-delta", b64)
	return b64, nil
}

// storeOversized moves content above the inline threshold to the blob
// store and returns a reference token instead. A failed blob write falls
// back to truncation so the document row is never lost.
func (k *Kit) storeOversized(ctx context.Context, docID uuid.UUID, kind chatstore.DocumentKind, content string) string {
	if len(content) <= k.inlineThreshold {
		return content
	}

	key := "documents/" + docID.String()
	contentType := "text/plain"
	payload := []byte(content)
	if kind == chatstore.DocumentImage {
		contentType = "image/png"
		if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
			payload = decoded
		}
	}

	if err := k.blob.Put(ctx, key, contentType, strings.NewReader(string(payload))); err != nil {
		k.logger.Error("blob write failed, truncating document content",
			"document_id", docID, "size", len(content), "error", err)
		return content[:k.inlineThreshold]
	}
	return storageRefPrefix + key
}

// emitArtifact writes an artifact lifecycle event as a data frame. A nil
// sink drops the event; persistence still proceeds.
func emitArtifact(sink stream.Sink, eventType, content string) {
	if sink == nil {
		return
	}
	payload := map[string]string{"type": eventType}
	if content != "" {
		payload["content"] = content
	}
	_ = sink.Write(stream.Data(payload))
}
