package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/aetherhq/aether/internal/app"
	"github.com/aetherhq/aether/internal/config"
	"github.com/aetherhq/aether/internal/log"
	"github.com/aetherhq/aether/internal/tui"
)

// runChat initializes the application and starts the interactive TUI.
func runChat(logger log.Logger) error {
	if err := checkRequiredEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := tui.NewNotifier()

	application, err := app.Setup(ctx, cfg, logger, app.Options{
		Notifier: notifier,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			logger.Warn("application close error", "error", closeErr)
		}
	}()

	model, err := tui.New(ctx, application.Handler, application.Chats, application.Gallery, notifier.C())
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
