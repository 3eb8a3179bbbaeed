package cmd

import (
	"strings"
	"testing"
	"time"
)

func TestCheckRequiredEnv(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		if err := checkRequiredEnv(); err == nil {
			t.Error("expected error when GEMINI_API_KEY is not set")
		}
	})

	t.Run("key present", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "test-key")
		if err := checkRequiredEnv(); err != nil {
			t.Errorf("checkRequiredEnv() error = %v", err)
		}
	})
}

func TestInitLogger(t *testing.T) {
	t.Run("default level", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		if logger := initLogger(); logger == nil {
			t.Fatal("initLogger returned nil")
		}
	})

	t.Run("debug level", func(t *testing.T) {
		t.Setenv("DEBUG", "1")
		if logger := initLogger(); logger == nil {
			t.Fatal("initLogger returned nil")
		}
	})
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "minutes ago"},
		{"hours", now.Add(-3 * time.Hour), "hours ago"},
		{"days", now.Add(-48 * time.Hour), "days ago"},
		{"old", now.Add(-30 * 24 * time.Hour), "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.t); !strings.Contains(got, tt.want) {
				t.Errorf("formatTime() = %q, want substring %q", got, tt.want)
			}
		})
	}
}
