package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/core"
	"golang.org/x/time/rate"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/log"
)

// ClientConfig tunes the resilience wrapping around flow execution.
type ClientConfig struct {
	Retry             RetryConfig
	Breaker           CircuitBreakerConfig
	RequestsPerSecond float64 // default: 2
	Burst             int     // default: 4
}

// DefaultClientConfig returns the default resilience settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Retry:             DefaultRetryConfig(),
		Breaker:           DefaultCircuitBreakerConfig(),
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// Client exposes the registered flows as assist.Service, adding rate
// limiting, retry with exponential backoff and a circuit breaker
// shared across all calls.
type Client struct {
	flows   *Flows
	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
	logger  log.Logger
}

// NewClient wraps registered flows in the resilience layer.
func NewClient(f *Flows, cfg ClientConfig, logger log.Logger) (*Client, error) {
	if f == nil {
		return nil, fmt.Errorf("flows are required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialInterval == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}

	return &Client{
		flows:   f,
		retry:   cfg.Retry,
		breaker: NewCircuitBreaker(cfg.Breaker),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}, nil
}

// BreakerState exposes the circuit state for status surfaces.
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}

// run executes one flow with rate limiting, retry and circuit
// breaking. Each attempt is rate limited individually.
func run[In, Out any](ctx context.Context, c *Client, name string, f *core.Flow[In, Out, struct{}], in In) (Out, error) {
	var zero Out

	if err := c.breaker.Allow(); err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limit wait: %w", err)
		}

		out, err := f.Run(ctx, in)
		if err == nil {
			c.breaker.Success()
			c.logger.Debug("flow executed",
				"flow", name,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return out, nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			c.breaker.Failure()
			return zero, fmt.Errorf("%s: %w", name, err)
		}

		// Last attempt - don't sleep
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying flow after error",
			"flow", name,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	c.breaker.Failure()
	return zero, fmt.Errorf("%s after %d retries (elapsed: %v): %w",
		name, c.retry.MaxRetries, time.Since(start), lastErr)
}

func (c *Client) InterpretQuery(ctx context.Context, req assist.InterpretRequest) (assist.InterpretResponse, error) {
	return run(ctx, c, "interpretQuery", c.flows.Interpret, req)
}

func (c *Client) RetrieveContext(ctx context.Context, req assist.RetrieveRequest) (assist.RetrieveResponse, error) {
	return run(ctx, c, "retrieveContext", c.flows.Retrieve, req)
}

func (c *Client) GenerateResponse(ctx context.Context, req assist.GenerateRequest) (assist.GenerateResponse, error) {
	return run(ctx, c, "generateResponse", c.flows.Generate, req)
}

func (c *Client) AnalyzeInformation(ctx context.Context, req assist.AnalyzeRequest) (assist.AnalyzeResponse, error) {
	return run(ctx, c, "analyzeInformation", c.flows.Analyze, req)
}

func (c *Client) ProcessFile(ctx context.Context, req assist.ProcessFileRequest) (assist.ProcessFileResponse, error) {
	return run(ctx, c, "processFile", c.flows.File, req)
}

func (c *Client) TranscribeAudio(ctx context.Context, req assist.TranscribeRequest) (assist.TranscribeResponse, error) {
	return run(ctx, c, "transcribeAudio", c.flows.Transcribe, req)
}

func (c *Client) SynthesizeSpeech(ctx context.Context, req assist.SynthesizeRequest) (assist.SynthesizeResponse, error) {
	return run(ctx, c, "generateSpeech", c.flows.Speech, req)
}

func (c *Client) GenerateImage(ctx context.Context, req assist.GenerateImageRequest) (assist.GenerateImageResponse, error) {
	return run(ctx, c, "generateImage", c.flows.Image, req)
}

func (c *Client) ProcessFeedback(ctx context.Context, req assist.FeedbackRequest) (assist.FeedbackResponse, error) {
	return run(ctx, c, "processFeedback", c.flows.Feedback, req)
}
