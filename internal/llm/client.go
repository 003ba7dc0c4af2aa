package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default client behavior when options are zero-valued.
const (
	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 1.0
	defaultBurst             = 1
)

// Default models per provider.
const (
	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGoogleModel    = "gemini-1.5-flash"
	defaultOllamaModel    = "llama3"
)

// Client generates a completion for a single prompt.
type Client interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// Options configures NewClient.
type Options struct {
	Provider          string
	Model             string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// SupportedProvider reports whether NewClient can build the named
// provider.
func SupportedProvider(name string) bool {
	switch name {
	case "anthropic", "openai", "google", "ollama":
		return true
	}
	return false
}

// NewClient builds a rate-limited client for the configured provider.
// Hosted providers require an API key; ollama does not.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	model, err := newModel(ctx, opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &client{
		provider: opts.Provider,
		model:    model,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func newModel(ctx context.Context, opts Options) (llms.Model, error) {
	switch opts.Provider {
	case "anthropic":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key required")
		}
		name := opts.Model
		if name == "" {
			name = defaultAnthropicModel
		}
		return anthropic.New(anthropic.WithToken(opts.APIKey), anthropic.WithModel(name))
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		name := opts.Model
		if name == "" {
			name = defaultOpenAIModel
		}
		return openai.New(openai.WithToken(opts.APIKey), openai.WithModel(name))
	case "google":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("google API key required")
		}
		name := opts.Model
		if name == "" {
			name = defaultGoogleModel
		}
		return googleai.New(ctx, googleai.WithAPIKey(opts.APIKey), googleai.WithDefaultModel(name))
	case "ollama":
		name := opts.Model
		if name == "" {
			name = defaultOllamaModel
		}
		return ollama.New(ollama.WithModel(name))
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", opts.Provider)
	}
}

type client struct {
	provider string
	model    llms.Model
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

// Call generates a completion for the prompt. Failures come back as
// *Error values classified by kind.
func (c *client) Call(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", Classify(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(callCtx, c.model, prompt)
	if err != nil {
		classified := Classify(err)
		c.logger.Warn("llm call failed",
			zap.String("provider", c.provider),
			zap.String("kind", string(classified.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", classified
	}

	c.logger.Debug("llm call completed",
		zap.String("provider", c.provider),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(response)),
	)
	return response, nil
}
