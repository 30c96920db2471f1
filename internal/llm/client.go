// Package llm defines the completion and transcription collaborators used by
// the call orchestrator, and the provider registry that resolves them.
package llm

import (
	"context"
	"io"
	"time"

	"github.com/soyeahso/meetbot/internal/domain"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stopReason,omitempty"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all completion providers implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
}

// Transcriber turns recorded caller audio into text.
type Transcriber interface {
	// Transcribe reads audio from r. filename carries the container
	// extension the provider uses to detect the format.
	Transcribe(ctx context.Context, r io.Reader, filename string) (string, error)

	Name() string
}

// MessagesFromTurns converts session history into provider messages.
func MessagesFromTurns(turns []domain.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Text})
	}
	return msgs
}
