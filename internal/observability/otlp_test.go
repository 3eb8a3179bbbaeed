package observability

import (
	"context"
	"testing"

	"github.com/aetherhq/aether/internal/config"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTLPConfig{}, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	cfg := config.OTLPConfig{
		Endpoint:    "localhost:4318",
		Environment: "test",
		ServiceName: "aether-test",
	}

	shutdown, err := Setup(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	// The exporter is lazy; registering it must succeed without a
	// collector listening.
	if err := shutdown(context.Background()); err != nil {
		t.Logf("shutdown flush error (no collector running): %v", err)
	}
}
