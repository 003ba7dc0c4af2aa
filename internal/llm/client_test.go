package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// stubModel returns a canned response or error for every call.
type stubModel struct {
	response string
	err      error
	delay    time.Duration
	calls    int
}

func (s *stubModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.response}},
	}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := s.GenerateContent(ctx, nil)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func newStubClient(model llms.Model, timeout time.Duration) *client {
	return &client{
		provider: "stub",
		model:    model,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		timeout:  timeout,
		logger:   zap.NewNop(),
	}
}

func TestCallReturnsResponse(t *testing.T) {
	stub := &stubModel{response: "42"}
	c := newStubClient(stub, time.Second)

	got, err := c.Call(context.Background(), "Return the number 42")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
	assert.Equal(t, 1, stub.calls)
}

func TestCallTimesOut(t *testing.T) {
	stub := &stubModel{response: "late", delay: 200 * time.Millisecond}
	c := newStubClient(stub, 10*time.Millisecond)

	_, err := c.Call(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestCallClassifiesRateLimit(t *testing.T) {
	stub := &stubModel{err: errors.New("API error (429): too many requests")}
	c := newStubClient(stub, time.Second)

	_, err := c.Call(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRateLimit))
}

func TestCallClassifiesAPIError(t *testing.T) {
	stub := &stubModel{err: errors.New("API error (400): bad request")}
	c := newStubClient(stub, time.Second)

	_, err := c.Call(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAPI))
}

func TestCallRespectsCanceledContext(t *testing.T) {
	stub := &stubModel{response: "never"}
	c := newStubClient(stub, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, "anything")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"status 429", errors.New("unexpected status 429"), KindRateLimit},
		{"rate limit text", errors.New("Rate limit exceeded"), KindRateLimit},
		{"quota text", errors.New("quota exhausted for project"), KindRateLimit},
		{"plain failure", errors.New("connection refused"), KindAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.kind, classified.Kind)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyPassesThroughKindedErrors(t *testing.T) {
	original := &Error{Kind: KindTimeout, Detail: "worker timed out"}
	wrapped := fmt.Errorf("attempt 2: %w", original)
	assert.Same(t, original, Classify(wrapped))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", &Error{Kind: KindRateLimit, Detail: "slow down"})
	assert.True(t, IsKind(err, KindRateLimit))
	assert.False(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(errors.New("plain"), KindAPI))
}

func TestSupportedProvider(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "google", "ollama"} {
		assert.True(t, SupportedProvider(name), name)
	}
	assert.False(t, SupportedProvider("bedrock"))
	assert.False(t, SupportedProvider(""))
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Provider: "bedrock"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestNewClientRequiresAPIKeyForHostedProviders(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai", "google"} {
		_, err := NewClient(context.Background(), Options{Provider: provider})
		assert.Error(t, err, provider)
	}
}
