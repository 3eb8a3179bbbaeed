package config

import (
	"errors"
	"testing"
)

// validBaseConfig returns a Config with all required fields set for the given backend.
func validBaseConfig(backend string) *Config {
	cfg := &Config{
		ModelName:         "gemini-2.5-flash",
		ImageModel:        "gemini-2.5-flash-image-preview",
		SpeechModel:       "gemini-2.5-flash-preview-tts",
		Temperature:       0.7,
		MaxTokens:         2048,
		VoiceLanguageCode: "en-US",
		HistoryWindow:     5,
		KnowledgeWindow:   3,
		ImageHistoryLimit: 50,
		StorageBackend:    backend,
		StateDir:          "/tmp/aether-test-state",
	}
	if backend == BackendPostgres {
		cfg.PostgresHost = "localhost"
		cfg.PostgresPort = 5432
		cfg.PostgresPassword = "test_password"
		cfg.PostgresDBName = "aether"
		cfg.PostgresSSLMode = "disable"
	}
	return cfg
}

func TestValidateSuccess(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	for _, backend := range []string{BackendFile, BackendPostgres} {
		t.Run(backend, func(t *testing.T) {
			cfg := validBaseConfig(backend)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error with valid config (backend %q): %v", backend, err)
			}
		})
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validBaseConfig(BackendFile)
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing GEMINI_API_KEY, got nil")
	}
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty image model",
			mutate:  func(c *Config) { c.ImageModel = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty speech model",
			mutate:  func(c *Config) { c.SpeechModel = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "zero max tokens",
			mutate:  func(c *Config) { c.MaxTokens = 0 },
			wantErr: ErrInvalidMaxTokens,
		},
		{
			name:    "zero history window",
			mutate:  func(c *Config) { c.HistoryWindow = 0 },
			wantErr: ErrInvalidWindow,
		},
		{
			name:    "zero image history limit",
			mutate:  func(c *Config) { c.ImageHistoryLimit = 0 },
			wantErr: ErrInvalidWindow,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StorageBackend = "redis" },
			wantErr: ErrInvalidStorageBackend,
		},
		{
			name:    "empty state dir",
			mutate:  func(c *Config) { c.StateDir = "" },
			wantErr: ErrInvalidStateDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-api-key")

			cfg := validBaseConfig(BackendFile)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePostgres(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty database name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "empty password",
			mutate:  func(c *Config) { c.PostgresPassword = "" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "short password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-api-key")

			cfg := validBaseConfig(BackendPostgres)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// File backend must not require any PostgreSQL settings.
func TestValidateFileBackendIgnoresPostgres(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	cfg := validBaseConfig(BackendFile)
	cfg.PostgresHost = ""
	cfg.PostgresPassword = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}
