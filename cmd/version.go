package cmd

import (
	"fmt"
	"os"

	"github.com/aetherhq/aether/internal/config"
)

// runVersion displays version and configuration information.
func runVersion() error {
	fmt.Printf("Aether %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration: unavailable (%v)\n", err)
		return nil
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Image model: %s\n", cfg.ImageModel)
	fmt.Printf("  Speech model: %s\n", cfg.SpeechModel)
	fmt.Printf("  Temperature: %.2f\n", cfg.Temperature)
	fmt.Printf("  Max tokens: %d\n", cfg.MaxTokens)
	fmt.Printf("  Storage backend: %s\n", cfg.StorageBackend)
	fmt.Printf("  Voice output: %v\n", cfg.VoiceOutput)

	// Never print the full key
	if key := os.Getenv("GEMINI_API_KEY"); len(key) >= 8 {
		fmt.Printf("  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("  GEMINI_API_KEY: configured")
	} else {
		fmt.Println("  GEMINI_API_KEY: Not set")
	}

	return nil
}
