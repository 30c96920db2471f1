package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/meetbot/internal/llm"
	"github.com/soyeahso/meetbot/internal/logging"
)

// FailoverClient completes a turn with the primary provider and moves down
// the fallback chain when a provider is unavailable. The chain never
// outlives the turn deadline.
type FailoverClient struct {
	registry *llm.Registry
	chain    []string
	log      *logging.Logger
}

// NewFailoverClient builds the provider chain: primary first, then each
// fallback once, skipping blanks and repeats.
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	seen := make(map[string]bool)
	var chain []string
	for _, name := range append([]string{primary}, fallbacks...) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return &FailoverClient{
		registry: registry,
		chain:    chain,
		log:      log.Sub("failover"),
	}
}

// Name reports the primary provider.
func (f *FailoverClient) Name() string {
	if len(f.chain) == 0 {
		return ""
	}
	return f.chain[0]
}

// Chain returns the providers in the order they are tried.
func (f *FailoverClient) Chain() []string { return append([]string(nil), f.chain...) }

// Complete asks each provider in turn. A non-retryable error stops the
// chain; exhausting it returns the last error annotated with every
// provider that was tried.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var (
		lastErr error
		tried   []string
	)
	for _, name := range f.chain {
		if ctx.Err() != nil {
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}

		client, err := f.registry.Resolve(name)
		if err != nil {
			f.log.Debug().Str("provider", name).Err(err).Msg("provider not configured, skipping")
			lastErr = err
			continue
		}

		tried = append(tried, name)
		req.Model = name
		resp, err := client.Complete(ctx, req)
		if err == nil {
			if resp.Model == "" {
				resp.Model = client.Name()
			}
			if len(tried) > 1 {
				f.log.Info().Str("provider", name).Strs("failed", tried[:len(tried)-1]).Msg("turn served by fallback provider")
			}
			return resp, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		f.log.Warn().Str("provider", name).Err(err).Msg("provider unavailable, trying next")
	}

	if lastErr == nil {
		return nil, errors.New("no completion providers configured")
	}
	if len(tried) > 1 {
		return nil, fmt.Errorf("all providers failed (%s): %w", strings.Join(tried, ", "), lastErr)
	}
	return nil, lastErr
}

// isRetryable reports whether another provider might succeed where this
// one failed. Turn deadline and cancellation errors never are.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"overloaded", "rate limit", "capacity", "connection refused", "no such host", "timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
