package tools

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parley-ai/parley/internal/blob"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/log"
)

// Tool name constants. Single source of truth for registration and the
// per-model active set.
const (
	ToolGetWeather         = "getWeather"
	ToolWebSearch          = "webSearch"
	ToolCreateDocument     = "createDocument"
	ToolUpdateDocument     = "updateDocument"
	ToolRequestSuggestions = "requestSuggestions"
)

// toolNames lists every registered tool in registration order.
var toolNames = []string{
	ToolGetWeather,
	ToolWebSearch,
	ToolCreateDocument,
	ToolUpdateDocument,
	ToolRequestSuggestions,
}

// ToolNames returns all registered tool names.
func ToolNames() []string {
	return toolNames
}

// DocumentStore is the persistence surface the artifact tools need.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *chatstore.Document) error
	LatestDocument(ctx context.Context, id uuid.UUID) (*chatstore.Document, error)
	SaveSuggestions(ctx context.Context, suggestions []*chatstore.Suggestion) error
}

// ImageGenerator is the slice of the OpenAI-compatible client the image
// artifact generator uses.
type ImageGenerator interface {
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// KitConfig holds all required dependencies for Kit.
type KitConfig struct {
	Store DocumentStore
	Blob  blob.Store

	// Image may be nil; the image document kind then fails with a
	// contained error instead of a crash.
	Image      ImageGenerator
	ImageModel string

	// InlineThreshold is the largest artifact payload stored inline in
	// the database; larger payloads go to the blob store.
	InlineThreshold int

	HTTPClient *http.Client
	Logger     log.Logger
}

// Kit provides the assistant's tools and registers them with genkit.
type Kit struct {
	store           DocumentStore
	blob            blob.Store
	image           ImageGenerator
	imageModel      string
	inlineThreshold int
	httpClient      *http.Client
	logger          log.Logger

	// g is captured at Register time; artifact generators run nested
	// generations through it.
	g *genkit.Genkit

	// Base URLs for external services, overridable in tests.
	weatherBaseURL string
	searchBaseURL  string
}

// NewKit creates a tool kit with all required dependencies.
func NewKit(cfg KitConfig) (*Kit, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("KitConfig.Store is required")
	}
	if cfg.Blob == nil {
		return nil, fmt.Errorf("KitConfig.Blob is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("KitConfig.Logger is required")
	}
	if cfg.InlineThreshold <= 0 {
		return nil, fmt.Errorf("KitConfig.InlineThreshold must be positive")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Kit{
		store:           cfg.Store,
		blob:            cfg.Blob,
		image:           cfg.Image,
		imageModel:      cfg.ImageModel,
		inlineThreshold: cfg.InlineThreshold,
		httpClient:      httpClient,
		logger:          cfg.Logger,
		weatherBaseURL:  openMeteoBaseURL,
		searchBaseURL:   duckDuckGoBaseURL,
	}, nil
}

// Register registers all tools with genkit. Must be called once before
// generation starts.
func (k *Kit) Register(g *genkit.Genkit) error {
	if g == nil {
		return fmt.Errorf("genkit instance is required (cannot be nil)")
	}
	k.g = g

	genkit.DefineTool(g, ToolGetWeather,
		"Get the current weather and hourly forecast at a location. "+
			"Takes latitude and longitude coordinates.",
		WithCallFrames(ToolGetWeather, k.GetWeather))

	genkit.DefineTool(g, ToolWebSearch,
		"Search the web for up-to-date factual information. "+
			"Returns a short answer or a list of result snippets.",
		WithCallFrames(ToolWebSearch, k.WebSearch))

	genkit.DefineTool(g, ToolCreateDocument,
		"Create a document artifact for writing, coding or data tasks. "+
			"Kinds: text (prose), code (a single program), sheet (CSV spreadsheet), image. "+
			"Content is generated from the title and streamed to the user; do not repeat it in your reply.",
		WithCallFrames(ToolCreateDocument, k.CreateDocument))

	genkit.DefineTool(g, ToolUpdateDocument,
		"Update an existing document artifact following a description of the changes. "+
			"Only call this after the user has given feedback on the current version.",
		WithCallFrames(ToolUpdateDocument, k.UpdateDocument))

	genkit.DefineTool(g, ToolRequestSuggestions,
		"Generate edit suggestions for an existing text document. "+
			"Each suggestion pairs a sentence from the document with an improved version.",
		WithCallFrames(ToolRequestSuggestions, k.RequestSuggestions))

	k.logger.Info("tools registered", "count", len(toolNames))
	return nil
}
