// Command parley runs the conversational-assistant backend: an HTTP
// API that accepts chat turns, streams model replies over SSE and
// persists every exchange in PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parley-ai/parley/db"
	"github.com/parley-ai/parley/internal/api"
	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/blob"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/entitlement"
	"github.com/parley-ai/parley/internal/log"
	"github.com/parley-ai/parley/internal/orchestrator"
	"github.com/parley-ai/parley/internal/tools"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs a long write window
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second

	devTokenTTL = 30 * 24 * time.Hour
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connURL := cfg.Postgres.URL()
	if err := db.Migrate(connURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := chatstore.NewPool(ctx, connURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()
	store := chatstore.New(pool, logger)

	// GEMINI_API_KEY is read by the plugin itself.
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return errors.New("initializing genkit with gemini provider")
	}

	blobStore, closeBlob, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBlob()

	kit, err := tools.NewKit(tools.KitConfig{
		Store:           store,
		Blob:            blobStore,
		Image:           newImageClient(cfg, logger),
		ImageModel:      cfg.Image.Model,
		InlineThreshold: cfg.Blob.InlineThreshold,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating tool kit: %w", err)
	}
	if err := kit.Register(g); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Store:   store,
		Genkit:  g,
		Logger:  logger,
		Timeout: cfg.StreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:         logger,
		Store:          store,
		Orchestrator:   orch,
		Blob:           blobStore,
		Tokens:         newTokenStore(logger),
		Entitlements:   entitlement.FromConfig(cfg.Tiers),
		MaxUploadBytes: cfg.Blob.MaxUploadBytes,
		RateBurst:      cfg.RateBurst,
		TrustProxy:     cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/api/*",
		"health", "/health",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// newBlobStore builds the configured blob store. The returned closer
// is a no-op for the memory driver.
func newBlobStore(ctx context.Context, cfg *config.Config, logger log.Logger) (blob.Store, func(), error) {
	switch cfg.Blob.Driver {
	case config.BlobDriverGCS:
		gcs, err := blob.NewGCSStore(ctx, cfg.Blob.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to GCS: %w", err)
		}
		return gcs, func() {
			if err := gcs.Close(); err != nil {
				logger.Warn("closing GCS client", "error", err)
			}
		}, nil
	case config.BlobDriverMemory:
		logger.Warn("using in-memory blob store, uploads do not survive restarts")
		return blob.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}
}

// newImageClient builds the OpenAI-compatible image client, or nil
// when no API key is configured (image documents then fail with a
// contained tool error).
func newImageClient(cfg *config.Config, logger log.Logger) tools.ImageGenerator {
	if cfg.Image.APIKey == "" {
		logger.Warn("image API key not set, image document generation disabled")
		return nil
	}
	oc := openai.DefaultConfig(cfg.Image.APIKey)
	oc.BaseURL = cfg.Image.APIBaseURL
	return openai.NewClientWithConfig(oc)
}

// newTokenStore builds the in-process token store. PARLEY_DEV_TOKEN
// seeds a premium identity for local development; production deploys
// are expected to bridge a real identity provider behind
// auth.TokenStore.
func newTokenStore(logger log.Logger) auth.TokenStore {
	tokens := auth.NewMemoryTokenStore()
	if tok := os.Getenv("PARLEY_DEV_TOKEN"); tok != "" {
		tokens.Issue(tok, auth.Identity{UserID: "dev", Tier: entitlement.TierPremium}, devTokenTTL)
		logger.Warn("issued development bearer token", "user", "dev", "ttl", devTokenTTL)
	}
	return tokens
}
