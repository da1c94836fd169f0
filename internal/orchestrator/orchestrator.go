// Package orchestrator drives a chat turn end to end: it records the
// stream attempt, assembles model context from stored history, runs the
// bounded tool-calling generation with streaming, and persists the
// resulting assistant turn regardless of whether the client is still
// connected.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/log"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/stream"
	"github.com/parley-ai/parley/internal/tools"
)

// maxSteps bounds the tool-calling loop within one generation.
const maxSteps = 5

// genericStreamError is the only error text a client sees mid-stream.
const genericStreamError = "An error occurred while generating the response."

const systemPrompt = "You are a friendly assistant! Keep your responses concise and helpful. " +
	"When a task calls for substantial content such as essays, code or spreadsheets, " +
	"use the createDocument tool instead of writing it inline, and wait for user " +
	"feedback before updating a document you just created."

// Title generation settings. A slow title must never hold the stream.
const (
	titleTimeout  = 5 * time.Second
	titleMaxRunes = 80
	titleInputMax = 500
)

const titlePrompt = `Generate a short title (at most 80 characters) summarizing what the user is asking about.
Respond with the title only: no quotes, no colons, plain text.

Message: %s

Title:`

// Store is the persistence surface the orchestrator needs.
type Store interface {
	CreateStream(ctx context.Context, streamID, chatID uuid.UUID) error
	GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]*chatstore.Message, error)
	SaveMessages(ctx context.Context, msgs []*chatstore.Message) error
	UpdateChatTitle(ctx context.Context, chatID uuid.UUID, title string) error
}

// GenerateFunc matches genkit.Generate. A seam for tests.
type GenerateFunc func(ctx context.Context, g *genkit.Genkit, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// Config holds the orchestrator dependencies.
type Config struct {
	Store  Store
	Genkit *genkit.Genkit
	Logger log.Logger

	// Timeout is the wall-clock ceiling on one generation, applied on a
	// context detached from the client connection.
	Timeout time.Duration

	// Generate defaults to genkit.Generate.
	Generate GenerateFunc
}

// Orchestrator runs chat generations.
type Orchestrator struct {
	store    Store
	g        *genkit.Genkit
	logger   log.Logger
	timeout  time.Duration
	generate GenerateFunc
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Config.Store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("Config.Logger is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("Config.Timeout must be positive")
	}
	gen := cfg.Generate
	if gen == nil {
		gen = genkit.Generate
	}
	return &Orchestrator{
		store:    cfg.Store,
		g:        cfg.Genkit,
		logger:   cfg.Logger,
		timeout:  cfg.Timeout,
		generate: gen,
	}, nil
}

// Request describes one chat turn to orchestrate. The user message must
// already be persisted; history is loaded fresh from the store.
type Request struct {
	Chat     *chatstore.Chat
	ModelID  string
	Identity auth.Identity
	Sink     stream.Sink

	// NewChat triggers title generation from UserText.
	NewChat  bool
	UserText string
}

// Run executes the turn. The incoming context is only observed until
// generation starts; after that a detached context with the configured
// timeout governs, so a client disconnect never cancels generation or
// persistence. Mid-stream failures surface as a terminal error frame on
// the sink, and the returned error is for logging only.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	// The stream outlives the request connection.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	genCtx = auth.ContextWithIdentity(genCtx, req.Identity)
	genCtx = stream.ContextWithSink(genCtx, req.Sink)

	streamID := uuid.New()
	if err := o.store.CreateStream(genCtx, streamID, req.Chat.ID); err != nil {
		return o.failStream(req.Sink, fmt.Errorf("recording stream: %w", err))
	}

	history, err := o.store.GetMessagesByChat(genCtx, req.Chat.ID)
	if err != nil {
		return o.failStream(req.Sink, fmt.Errorf("loading history: %w", err))
	}

	var titleWG sync.WaitGroup
	if req.NewChat {
		titleWG.Add(1)
		go func() {
			defer titleWG.Done()
			o.setTitle(genCtx, req.Chat.ID, req.UserText)
		}()
	}

	textSm := stream.NewSmoother(req.Sink, stream.TextDelta)
	reasonSm := stream.NewSmoother(req.Sink, stream.ReasoningDelta)

	resp, genErr := o.generate(genCtx, o.g,
		ai.WithModelName(model.GenkitName(req.ModelID)),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(toAIMessages(history)...),
		ai.WithTools(tools.ActiveRefs(o.g, req.ModelID)...),
		ai.WithMaxTurns(maxSteps),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				switch {
				case part.Kind == ai.PartReasoning && part.Text != "":
					if err := reasonSm.Write(part.Text); err != nil {
						return err
					}
				case part.Kind == ai.PartText && part.Text != "":
					if err := textSm.Write(part.Text); err != nil {
						return err
					}
				}
			}
			return nil
		}),
	)
	_ = reasonSm.Flush()
	_ = textSm.Flush()
	titleWG.Wait()

	if genErr != nil {
		return o.failStream(req.Sink, fmt.Errorf("generation: %w", genErr))
	}

	parts, hasAssistant := mergeAssistantTurn(messagesAfterLastUser(resp))
	if !hasAssistant {
		// Known gap: a response of only tool traffic leaves nothing to
		// persist. Clients re-fetch history and see no assistant turn.
		o.logger.Error("generation produced no assistant turn, skipping persistence",
			"chat_id", req.Chat.ID, "stream_id", streamID)
		return nil
	}

	assistant := &chatstore.Message{
		ID:        uuid.New(),
		ChatID:    req.Chat.ID,
		Role:      chatstore.RoleAssistant,
		Parts:     parts,
		CreatedAt: time.Now(),
	}
	if err := o.store.SaveMessages(genCtx, []*chatstore.Message{assistant}); err != nil {
		return o.failStream(req.Sink, fmt.Errorf("persisting assistant turn: %w", err))
	}

	o.logger.Info("turn completed",
		"chat_id", req.Chat.ID, "stream_id", streamID,
		"model", req.ModelID, "parts", len(parts))
	return nil
}

// failStream converts an internal failure into the terminal error frame.
// The message is generic; details stay in the logs.
func (o *Orchestrator) failStream(sink stream.Sink, err error) error {
	o.logger.Error("stream failed", "error", err)
	_ = sink.Write(stream.Error(genericStreamError))
	return err
}

// setTitle names a new chat from its first user message, falling back to
// truncation when the model is unavailable.
func (o *Orchestrator) setTitle(ctx context.Context, chatID uuid.UUID, userText string) {
	title := o.generateTitle(ctx, userText)
	if title == "" {
		title = truncateForTitle(userText)
	}
	if title == "" {
		title = "New chat"
	}
	if err := o.store.UpdateChatTitle(ctx, chatID, title); err != nil {
		o.logger.Warn("updating chat title", "chat_id", chatID, "error", err)
	}
}

func (o *Orchestrator) generateTitle(ctx context.Context, userText string) string {
	if o.g == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	if runes := []rune(userText); len(runes) > titleInputMax {
		userText = string(runes[:titleInputMax]) + "..."
	}

	resp, err := o.generate(ctx, o.g,
		ai.WithModelName(model.GenkitName(model.TitleModel)),
		ai.WithPrompt(titlePrompt, userText),
	)
	if err != nil {
		o.logger.Debug("title generation failed, using truncation fallback", "error", err)
		return ""
	}

	title := strings.TrimSpace(resp.Text())
	if runes := []rune(title); len(runes) > titleMaxRunes {
		title = strings.TrimSpace(string(runes[:titleMaxRunes]))
	}
	return title
}

// truncateForTitle cuts the first user message down to a title, breaking
// at a word boundary when one is close enough.
func truncateForTitle(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= titleMaxRunes {
		return message
	}

	truncated := string(runes[:titleMaxRunes])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > titleMaxRunes/2 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(truncated) + "..."
}
