package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/config"
	"github.com/aetherhq/aether/internal/log"
	"github.com/aetherhq/aether/internal/store"
	pgstore "github.com/aetherhq/aether/internal/store/postgres"
)

// runChats lists saved conversations without starting the assistant.
// Only the storage layer is opened; no model access is needed.
func runChats(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()

	var st store.Store
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, cfg.PostgresConnectionString(), cfg.PostgresURL(), logger)
		if err != nil {
			return fmt.Errorf("failed to open postgres store: %w", err)
		}
		defer pg.Close()
		st = pg
	default:
		fs, err := store.NewFile(cfg.StateDir, logger)
		if err != nil {
			return fmt.Errorf("failed to open file store: %w", err)
		}
		st = fs
	}

	repo := chat.NewRepository(ctx, st, logger)
	chats := repo.Chats()
	if len(chats) == 0 {
		fmt.Println("No saved conversations.")
		return nil
	}

	activeID := repo.ActiveChatID()
	fmt.Println("Conversations:")
	for i, c := range chats {
		marker := "  "
		if c.ID == activeID {
			marker = "* "
		}
		fmt.Printf("%s%d. %s (%d messages, %s)\n",
			marker, i+1, c.Title, len(c.Messages), formatTime(c.CreatedAt))
	}
	return nil
}

// formatTime formats time in a human-readable relative format.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
