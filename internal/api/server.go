package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/blob"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/entitlement"
	"github.com/parley-ai/parley/internal/orchestrator"
)

// Store is the persistence surface the handlers need. *chatstore.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateChat(ctx context.Context, chat *chatstore.Chat) error
	GetChat(ctx context.Context, id uuid.UUID) (*chatstore.Chat, error)
	DeleteChat(ctx context.Context, id uuid.UUID) (*chatstore.Chat, error)
	ListChatsByUser(ctx context.Context, userID string, limit int, endingBefore *uuid.UUID) ([]*chatstore.Chat, error)
	UpdateChatVisibility(ctx context.Context, id uuid.UUID, visibility chatstore.Visibility) error
	SaveMessages(ctx context.Context, messages []*chatstore.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*chatstore.Message, error)
	DeleteMessagesAfter(ctx context.Context, chatID uuid.UUID, after time.Time) error
	CountUserMessagesSince(ctx context.Context, userID string, window time.Duration) (int, error)
	UpsertVote(ctx context.Context, vote *chatstore.Vote) error
	VotesByChat(ctx context.Context, chatID uuid.UUID) ([]*chatstore.Vote, error)
	SaveDocument(ctx context.Context, doc *chatstore.Document) error
	DocumentVersions(ctx context.Context, id uuid.UUID) ([]*chatstore.Document, error)
	LatestDocument(ctx context.Context, id uuid.UUID) (*chatstore.Document, error)
	DeleteDocumentVersionsAfter(ctx context.Context, id uuid.UUID, after time.Time) error
	SuggestionsByDocument(ctx context.Context, documentID uuid.UUID) ([]*chatstore.Suggestion, error)
	StreamIDsByChat(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
}

// Runner executes one chat turn, streaming frames to the request's
// sink. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) error
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Store        Store              // Required
	Orchestrator Runner             // Required
	Blob         blob.Store         // Required
	Tokens       auth.TokenStore    // Required
	Entitlements *entitlement.Table // Optional: nil uses the built-in defaults

	MaxUploadBytes int64 // Upload size ceiling (0 = default 50 MiB)
	RateBurst      int   // Rate limiter burst size per IP (0 = default 60)
	TrustProxy     bool  // Trust X-Real-IP/X-Forwarded-For headers
}

// Server is the JSON/SSE API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Blob == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entitlements := cfg.Entitlements
	if entitlements == nil {
		entitlements = entitlement.Defaults()
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = config.DefaultMaxUploadBytes
	}

	ch := &chatHandler{
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		entitlements: entitlements,
		logger:       logger,
	}
	vh := &voteHandler{store: cfg.Store, logger: logger}
	dh := &documentHandler{store: cfg.Store, logger: logger}
	fh := &fileHandler{blob: cfg.Blob, maxBytes: maxUpload, logger: logger}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("GET /api/chat", ch.getStreams)
	mux.HandleFunc("DELETE /api/chat", ch.deleteChat)
	mux.HandleFunc("PATCH /api/chat/visibility", ch.updateVisibility)
	mux.HandleFunc("DELETE /api/chat/messages", ch.deleteMessages)
	mux.HandleFunc("GET /api/history", ch.history)

	// Votes
	mux.HandleFunc("GET /api/vote", vh.list)
	mux.HandleFunc("PATCH /api/vote", vh.upsert)

	// Documents and suggestions
	mux.HandleFunc("GET /api/document", dh.versions)
	mux.HandleFunc("POST /api/document", dh.save)
	mux.HandleFunc("DELETE /api/document", dh.prune)
	mux.HandleFunc("GET /api/suggestions", dh.suggestions)

	// Files
	mux.HandleFunc("POST /api/files/upload", fh.upload)
	mux.HandleFunc("GET /api/files/{fileId}", fh.get)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = config.DefaultRateBurst
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Auth → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. RateLimit runs before Auth so unauthenticated
	// floods cannot hammer the token store.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Tokens, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux separates health probes from the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// health is a liveness probe for container orchestrators.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
