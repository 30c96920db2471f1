package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/soyeahso/meetbot/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(mock llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	reg.Register("mock", mock)
	reg.SetFallback("mock")
	return reg
}

func TestFailoverSuccess(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}

	fc := NewFailoverClient(testRegistry(mock), "mock", nil, silentLog())
	assert.Equal(t, "mock", fc.Name())

	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "mock", resp.Model, "model is filled from the answering provider")
}

func TestFailoverTriesFallback(t *testing.T) {
	callOrder := []string{}

	primary := &llm.MockClient{
		ProviderName: "openai",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callOrder = append(callOrder, "openai")
			return nil, &llm.ProviderError{Provider: "openai", Message: "rate limited", Code: 429}
		},
	}

	fallback := &llm.MockClient{
		ProviderName: "ollama",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callOrder = append(callOrder, "ollama")
			return &llm.CompletionResponse{Content: "fallback response", Model: "llama3"}, nil
		},
	}

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", primary)
	reg.Register("ollama", fallback)

	fc := NewFailoverClient(reg, "openai", []string{"ollama"}, silentLog())

	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fallback response", resp.Content)
	assert.Equal(t, "llama3", resp.Model)
	assert.Equal(t, []string{"openai", "ollama"}, callOrder)
}

func TestFailoverNonRetryableStops(t *testing.T) {
	callCount := 0

	primary := &llm.MockClient{
		ProviderName: "openai",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callCount++
			return nil, fmt.Errorf("invalid request: messages must not be empty")
		},
	}

	fallback := &llm.MockClient{
		ProviderName: "ollama",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callCount++
			return &llm.CompletionResponse{Content: "should not reach"}, nil
		},
	}

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", primary)
	reg.Register("ollama", fallback)

	fc := NewFailoverClient(reg, "openai", []string{"ollama"}, silentLog())

	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, callCount, "should not try fallback on non-retryable error")
}

func TestFailoverStopsWhenTurnExpired(t *testing.T) {
	callCount := 0
	ctx, cancel := context.WithCancel(context.Background())

	primary := &llm.MockClient{
		ProviderName: "openai",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callCount++
			cancel()
			return nil, fmt.Errorf("request timeout")
		},
	}
	fallback := &llm.MockClient{ProviderName: "ollama"}

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", primary)
	reg.Register("ollama", fallback)

	fc := NewFailoverClient(reg, "openai", []string{"ollama"}, silentLog())

	_, err := fc.Complete(ctx, llm.CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, 1, callCount)
}

func TestFailoverUnknownProviderSkipped(t *testing.T) {
	ollama := &llm.MockClient{ProviderName: "ollama"}

	reg := llm.NewRegistry(silentLog())
	reg.Register("ollama", ollama)

	fc := NewFailoverClient(reg, "openai", []string{"ollama"}, silentLog())

	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&llm.ProviderError{Code: 429}, true},
		{&llm.ProviderError{Code: 529}, true},
		{&llm.ProviderError{Code: 503}, true},
		{&llm.ProviderError{Code: 400}, false},
		{fmt.Errorf("server overloaded"), true},
		{fmt.Errorf("rate limit exceeded"), true},
		{fmt.Errorf("dial tcp 127.0.0.1:11434: connection refused"), true},
		{fmt.Errorf("invalid input"), false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{context.Canceled, false},
		{fmt.Errorf("dial tcp: lookup api.openai.com: no such host"), true},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryable(tt.err), "%v", tt.err)
	}
}

func TestFailoverChain(t *testing.T) {
	tests := []struct {
		name      string
		primary   string
		fallbacks []string
		want      []string
	}{
		{"primary only", "openai", nil, []string{"openai"}},
		{"fallbacks appended", "openai", []string{"ollama"}, []string{"openai", "ollama"}},
		{"repeats dropped", "openai", []string{"openai", "ollama", "ollama"}, []string{"openai", "ollama"}},
		{"blanks dropped", "", []string{" ", "ollama"}, []string{"ollama"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := NewFailoverClient(llm.NewRegistry(silentLog()), tt.primary, tt.fallbacks, silentLog())
			assert.Equal(t, tt.want, fc.Chain())
			assert.Equal(t, tt.want[0], fc.Name())
		})
	}
}

func TestFailoverAllProvidersFail(t *testing.T) {
	down := func(name string) *llm.MockClient {
		return &llm.MockClient{
			ProviderName: name,
			CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, &llm.ProviderError{Provider: name, Message: "unavailable", Code: 503}
			},
		}
	}

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", down("openai"))
	reg.Register("ollama", down("ollama"))

	fc := NewFailoverClient(reg, "openai", []string{"ollama"}, silentLog())
	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed (openai, ollama)")

	var provErr *llm.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "ollama", provErr.Provider)
}

func TestFailoverEmptyChain(t *testing.T) {
	fc := NewFailoverClient(llm.NewRegistry(silentLog()), "", nil, silentLog())
	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	assert.EqualError(t, err, "no completion providers configured")
}
