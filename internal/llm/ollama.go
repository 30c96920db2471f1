package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/version"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	ollamaTimeout    = 120 * time.Second
	maxErrorBody     = 4 << 10
)

// OllamaClient completes chats against a local Ollama server. It is the
// usual fallback when the hosted model is unreachable.
type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewOllamaClient targets baseURL (default http://localhost:11434).
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: ollamaTimeout},
	}
}

func (o *OllamaClient) Name() string { return "ollama" }

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Complete runs one non-streaming /api/chat exchange.
func (o *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	body := ollamaChatRequest{Model: o.model, Messages: req.Messages}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	var out ollamaChatResponse
	if err := o.post(ctx, "/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &CompletionResponse{
		Content:    out.Message.Content,
		StopReason: out.DoneReason,
		Model:      o.model,
		Usage:      Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
		Duration:   time.Since(start),
	}, nil
}

// post sends in as JSON and decodes a 200 reply into out. Transport
// failures and non-200 replies come back as *ProviderError.
func (o *OllamaClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := o.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ProviderError{Provider: o.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{Provider: o.Name(), Code: resp.StatusCode, Message: ollamaErrorText(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding ollama response: %w", err)
	}
	return nil
}

// ollamaErrorText prefers the "error" field Ollama puts in JSON bodies.
func ollamaErrorText(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
