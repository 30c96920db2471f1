package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/meetbot/internal/config"
)

// OpenAIClient talks to the OpenAI API (or a compatible endpoint) for both
// chat completion and audio transcription.
type OpenAIClient struct {
	client             *openai.Client
	chatModel          string
	transcriptionModel string
	temperature        *float64
	maxTokens          int
}

// NewOpenAIClient creates a client from the openai config section.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &OpenAIClient{
		client:             openai.NewClientWithConfig(oc),
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
		temperature:        cfg.Temperature,
		maxTokens:          cfg.MaxTokens,
	}
}

// Name returns the provider name.
func (o *OpenAIClient) Name() string { return "openai" }

// Complete sends a chat completion request.
func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := o.chatModel
	if req.Model != "" && req.Model != o.Name() {
		model = req.Model
	}

	creq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	temp := o.temperature
	if req.Temperature != nil {
		temp = req.Temperature
	}
	if temp != nil {
		creq.Temperature = float32(*temp)
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	} else if o.maxTokens > 0 {
		creq.MaxTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, o.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: o.Name(), Message: "no choices in response"}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Duration: time.Since(start),
	}, nil
}

// Transcribe sends recorded audio to the transcription endpoint.
func (o *OpenAIClient) Transcribe(ctx context.Context, r io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "recording.wav"
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.transcriptionModel,
		FilePath: filename,
		Reader:   r,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", o.wrapError(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// wrapError maps go-openai errors onto ProviderError so failover can inspect
// the status code.
func (o *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: o.Name(), Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: o.Name(), Code: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("%s: %w", o.Name(), err)
}
