// Package cmd provides CLI commands for Aether.
//
// Commands:
//   - chat (default): Interactive assistant with Bubble Tea TUI
//   - chats: List saved conversations
//   - version: Show version and configuration
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aetherhq/aether/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the Aether CLI application.
func Execute() error {
	logger := initLogger()
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		return runChat(logger)
	}

	switch os.Args[1] {
	case "chat":
		return runChat(logger)
	case "chats", "sessions":
		return runChats(logger)
	case "version", "--version", "-v":
		return runVersion()
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// initLogger builds the structured logger. Log level is controlled by
// the DEBUG environment variable. Logs go to stderr so they never
// corrupt the TUI on stdout.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	return log.New(cfg)
}

// checkRequiredEnv verifies the Gemini API key is present before any
// model call can be attempted.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Aether requires a Gemini API key to function.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")
		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Aether - Your conversational AI assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  aether             Start interactive chat (default)")
	fmt.Println("  aether chats       List saved conversations")
	fmt.Println("  aether version     Show version information")
	fmt.Println("  aether help        Show this help")
	fmt.Println()
	fmt.Println("Interactive commands:")
	fmt.Println("  /new /chats /switch /delete /rename   manage conversations")
	fmt.Println("  /regen /stop /feedback                control replies")
	fmt.Println("  /attach /voice /image /images         files, voice and images")
	fmt.Println("  /help /exit                           everything else")
	fmt.Println()
	fmt.Println("Shortcuts:")
	fmt.Println("  Enter              Send message")
	fmt.Println("  Esc                Stop the running reply")
	fmt.Println("  Ctrl+C             Cancel / clear (twice to exit)")
	fmt.Println("  Ctrl+D             Exit")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println("  DATABASE_URL       Optional: PostgreSQL state backend")
}
