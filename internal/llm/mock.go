package llm

import (
	"context"
	"io"
)

// MockClient is a test double for Client and Transcriber.
type MockClient struct {
	ProviderName   string
	CompleteFunc   func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	TranscribeFunc func(ctx context.Context, r io.Reader, filename string) (string, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

func (m *MockClient) Transcribe(ctx context.Context, r io.Reader, filename string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, r, filename)
	}
	return "mock transcript", nil
}
