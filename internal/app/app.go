// Package app provides application initialization and dependency
// injection. App is the container that wires configuration, storage,
// repositories, Genkit flows and the message orchestrator together.
package app

import (
	"github.com/firebase/genkit/go/genkit"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/config"
	"github.com/aetherhq/aether/internal/gallery"
	"github.com/aetherhq/aether/internal/log"
	"github.com/aetherhq/aether/internal/store"
	pgstore "github.com/aetherhq/aether/internal/store/postgres"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit  *genkit.Genkit
	Store   store.Store
	Chats   *chat.Repository
	Gallery *gallery.Repository
	Handler *assist.Handler

	// Lifecycle management
	pgStore     *pgstore.Store
	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.pgStore != nil {
		a.pgStore.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
