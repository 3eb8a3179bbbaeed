// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.aether/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: Model selection for text, image generation and speech synthesis
//   - Storage: session store backend, file or PostgreSQL (see storage.go)
//   - Voice: speech output toggle and language code
//   - Observability: OTLP trace export (see observability.go)
//
// Security: Sensitive data (passwords) are never logged; config directory uses 0750 permissions.
// Validation: Range checks in validation.go with clear error messages.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidStorageBackend indicates the storage backend is not supported.
	ErrInvalidStorageBackend = errors.New("invalid storage backend")

	// ErrInvalidStateDir indicates the state directory is invalid.
	ErrInvalidStateDir = errors.New("invalid state directory")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidWindow indicates a history window value is out of range.
	ErrInvalidWindow = errors.New("invalid history window")
)

// Storage backend identifiers used in Config.StorageBackend.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

const (
	// DefaultModelName is the default conversational model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultImageModel is the default image generation model. It must
	// support the IMAGE response modality.
	DefaultImageModel = "gemini-2.5-flash-image-preview"

	// DefaultSpeechModel is the default text-to-speech model. It must
	// support the AUDIO response modality.
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"

	// DefaultHistoryWindow is how many trailing messages are serialized
	// as conversational context for intent analysis.
	DefaultHistoryWindow = 5

	// DefaultKnowledgeWindow is how many trailing assistant replies are
	// offered as source material for context retrieval.
	DefaultKnowledgeWindow = 3

	// DefaultImageHistoryLimit caps the number of retained gallery entries.
	DefaultImageHistoryLimit = 50
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`     // conversational model (e.g. "gemini-2.5-flash")
	ImageModel  string  `mapstructure:"image_model" json:"image_model"`   // image generation model
	SpeechModel string  `mapstructure:"speech_model" json:"speech_model"` // text-to-speech model
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Voice and language configuration
	VoiceOutput       bool   `mapstructure:"voice_output" json:"voice_output"`               // speak assistant replies aloud
	VoiceLanguageCode string `mapstructure:"voice_language_code" json:"voice_language_code"` // BCP-47, e.g. "en-US"
	Language          string `mapstructure:"language" json:"language"`                       // reply language, empty keeps the model default

	// Conversation windows
	HistoryWindow     int `mapstructure:"history_window" json:"history_window"`
	KnowledgeWindow   int `mapstructure:"knowledge_window" json:"knowledge_window"`
	ImageHistoryLimit int `mapstructure:"image_history_limit" json:"image_history_limit"`

	// Trigger vocabulary overrides. Empty slices keep the built-in defaults.
	ImageTriggers        []string `mapstructure:"image_triggers" json:"image_triggers"`
	AnalysisTriggers     []string `mapstructure:"analysis_triggers" json:"analysis_triggers"`
	FileAnalysisTriggers []string `mapstructure:"file_analysis_triggers" json:"file_analysis_triggers"`

	// Storage configuration (see storage.go for documentation)
	StorageBackend   string `mapstructure:"storage_backend" json:"storage_backend"` // "file" (default) or "postgres"
	StateDir         string `mapstructure:"state_dir" json:"state_dir"`             // file backend state directory
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability configuration (see observability.go for type definition)
	OTLP OTLPConfig `mapstructure:"otlp" json:"otlp"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.aether/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".aether")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("image_model", DefaultImageModel)
	viper.SetDefault("speech_model", DefaultSpeechModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	// Voice defaults
	viper.SetDefault("voice_output", false)
	viper.SetDefault("voice_language_code", "en-US")
	viper.SetDefault("language", "")

	// Conversation window defaults
	viper.SetDefault("history_window", DefaultHistoryWindow)
	viper.SetDefault("knowledge_window", DefaultKnowledgeWindow)
	viper.SetDefault("image_history_limit", DefaultImageHistoryLimit)

	// Storage defaults (file backend keeps state next to the config)
	viper.SetDefault("storage_backend", BackendFile)
	viper.SetDefault("state_dir", filepath.Join(configDir, "state"))

	// PostgreSQL defaults for a local development database
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "aether")
	viper.SetDefault("postgres_password", "aether_dev_password")
	viper.SetDefault("postgres_db_name", "aether")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// OTLP defaults (empty endpoint disables trace export)
	viper.SetDefault("otlp.endpoint", "")
	viper.SetDefault("otlp.environment", "dev")
	viper.SetDefault("otlp.service_name", "aether")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; validation
// checks its presence in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Model overrides
	mustBind("model_name", "AETHER_MODEL_NAME")
	mustBind("image_model", "AETHER_IMAGE_MODEL")
	mustBind("speech_model", "AETHER_SPEECH_MODEL")

	// Voice overrides
	mustBind("voice_output", "AETHER_VOICE_OUTPUT")
	mustBind("voice_language_code", "AETHER_VOICE_LANGUAGE_CODE")
	mustBind("language", "AETHER_LANGUAGE")

	// Storage overrides
	mustBind("storage_backend", "AETHER_STORAGE_BACKEND")
	mustBind("state_dir", "AETHER_STATE_DIR")

	// OTLP overrides
	mustBind("otlp.endpoint", "AETHER_OTLP_ENDPOINT")
	mustBind("otlp.service_name", "AETHER_OTLP_SERVICE_NAME")
	mustBind("otlp.environment", "AETHER_OTLP_ENVIRONMENT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method or the nested struct's MarshalJSON.
// The compiler will remind you when tests fail.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash".
// If name already contains a "/", it is returned as-is.
func FullModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
