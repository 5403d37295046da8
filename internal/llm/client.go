// Package llm classifies expenses with remote language models. It supports
// OpenAI and Anthropic with retry, rate limiting and response caching.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
)

// Client sends one prompt pair to a model provider and returns the text reply.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewClient creates a raw LLM client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, cfg.Provider)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// classifyStatus maps a provider HTTP status onto the retry taxonomy. A 429
// carries the provider's Retry-After so the retry loop waits as asked.
func classifyStatus(provider string, status int, body string, header http.Header) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return common.RateLimited(err, common.ParseRetryAfter(header.Get("Retry-After"), time.Now()))
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return common.Permanent(err)
	}
}
