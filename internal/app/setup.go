package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/assist/flows"
	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/config"
	"github.com/aetherhq/aether/internal/gallery"
	"github.com/aetherhq/aether/internal/log"
	"github.com/aetherhq/aether/internal/observability"
	"github.com/aetherhq/aether/internal/store"
	pgstore "github.com/aetherhq/aether/internal/store/postgres"
)

// Options adjusts Setup for callers that supply their own
// collaborators, primarily the TUI front end.
type Options struct {
	Recorder assist.Recorder // optional microphone backend
	Player   assist.Player   // optional audio playback backend
	Notifier assist.Notifier // optional; defaults to NopNotifier
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger, opts Options) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	st, err := provideStore(ctx, a)
	if err != nil {
		return nil, err
	}
	a.Store = st

	a.Chats = chat.NewRepository(ctx, st, logger)
	a.Gallery = gallery.NewRepository(ctx, st, cfg.ImageHistoryLimit, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	client, err := provideServiceClient(g, cfg, logger)
	if err != nil {
		return nil, err
	}

	handler, err := assist.NewHandler(assist.HandlerParams{
		Service:  client,
		Chats:    a.Chats,
		Gallery:  a.Gallery,
		Recorder: opts.Recorder,
		Player:   opts.Player,
		Notifier: opts.Notifier,
		Logger:   logger,
		Config: assist.Config{
			HistoryWindow:     cfg.HistoryWindow,
			KnowledgeWindow:   cfg.KnowledgeWindow,
			Language:          cfg.Language,
			VoiceOutput:       cfg.VoiceOutput,
			VoiceLanguageCode: cfg.VoiceLanguageCode,
			Vocabulary: assist.Vocabulary{
				ImageTriggers:        cfg.ImageTriggers,
				AnalysisTriggers:     cfg.AnalysisTriggers,
				FileAnalysisTriggers: cfg.FileAnalysisTriggers,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Handler = handler

	return a, nil
}

// provideOtelShutdown sets up trace export before Genkit
// initialization so the TracerProvider is ready when flows register.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.Setup(ctx, cfg.OTLP, logger)
	if err != nil || shutdown == nil {
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideStore opens the configured key-value backend. The postgres
// handle is kept on the App so Close can release the pool.
func provideStore(ctx context.Context, a *App) (store.Store, error) {
	cfg := a.Config
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, cfg.PostgresConnectionString(), cfg.PostgresURL(), a.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		a.pgStore = pg
		return pg, nil
	case config.BackendFile, "":
		fs, err := store.NewFile(cfg.StateDir, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.StorageBackend)
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. Call
// ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	logger.Info("initialized Genkit",
		"model", cfg.ModelName,
		"image_model", cfg.ImageModel,
		"speech_model", cfg.SpeechModel,
	)
	return g, nil
}

// provideServiceClient registers the flows and wraps them in the
// resilient client.
func provideServiceClient(g *genkit.Genkit, cfg *config.Config, logger log.Logger) (*flows.Client, error) {
	f := flows.Define(g, flows.Config{
		Model:       config.FullModelName(cfg.ModelName),
		ImageModel:  config.FullModelName(cfg.ImageModel),
		SpeechModel: config.FullModelName(cfg.SpeechModel),
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})

	client, err := flows.NewClient(f, flows.DefaultClientConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating flow client: %w", err)
	}
	return client, nil
}
