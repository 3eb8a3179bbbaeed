package config

import (
	"strings"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{name: "empty", secret: "", want: ""},
		{name: "short fully masked", secret: "hunter2", want: maskedValue},
		{name: "boundary fully masked", secret: "12345678", want: maskedValue},
		{name: "long shows edges", secret: "my_long_secret_key_123", want: "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestConfigStringMasksPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "super_secret_password"}

	s := cfg.String()

	if strings.Contains(s, "super_secret_password") {
		t.Errorf("String() leaked password: %s", s)
	}
	if !strings.Contains(s, maskedValue) {
		t.Errorf("String() missing mask: %s", s)
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string
	}{
		{name: "bare name gets prefix", model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "qualified name unchanged", model: "googleai/gemini-2.5-pro", want: "googleai/gemini-2.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FullModelName(tt.model); got != tt.want {
				t.Errorf("FullModelName(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}
