// Package observability wires Genkit's tracer provider to an OTLP
// collector so flow executions can be inspected end to end.
//
// Export is opt-in: with no endpoint configured, tracing stays local
// to Genkit and nothing leaves the process. Any OTLP-compatible
// collector works (otel-collector, Jaeger, a vendor agent listening
// on localhost:4318).
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aetherhq/aether/internal/config"
	"github.com/aetherhq/aether/internal/log"
)

// noopShutdown is returned when export is disabled or unavailable.
func noopShutdown(context.Context) error { return nil }

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider.
// It returns a shutdown function that flushes pending spans.
//
// An empty endpoint disables export. Exporter construction failures
// disable export rather than failing startup.
func Setup(ctx context.Context, cfg config.OTLPConfig, logger log.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Endpoint == "" {
		logger.Debug("trace export disabled, no OTLP endpoint configured")
		return noopShutdown, nil
	}

	// Genkit's TracerProvider reads service identity from the OTEL
	// environment at span-build time.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return noopShutdown, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
