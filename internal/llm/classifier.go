package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"golang.org/x/time/rate"
)

var _ classification.Classifier = (*Classifier)(nil)

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// Classifier classifies expenses through a remote model.
type Classifier struct {
	client      Client
	cache       *resultCache
	logger      *slog.Logger
	rateLimiter *rate.Limiter
	retryOpts   service.RetryOptions
}

// NewClassifier creates a new LLM-based classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wraps an existing client with caching, rate limiting and retries.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Classifier{
		client:      client,
		cache:       newResultCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// Classify asks the model for a classification. Errors mean the remote path failed
// completely and the caller should fall back.
func (c *Classifier) Classify(ctx context.Context, req classification.Request) (model.ClassificationResult, error) {
	key := cacheKey(req.Description, req.Amount)
	if result, found := c.cache.get(key); found {
		c.logger.Debug("cache hit for expense", "description", req.Description)
		return result, nil
	}

	prompt := buildPrompt(req.Description, req.Amount)

	var result model.ClassificationResult
	err := common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return common.Permanent(fmt.Errorf("rate limiter canceled: %w", err))
		}

		content, err := c.client.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return err
		}

		parsed, err := parseClassification(content)
		if err != nil {
			return common.Permanent(err)
		}
		result = parsed
		return nil
	}, c.retryOpts)
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	c.cache.set(key, result)

	c.logger.Info("expense classified",
		"description", req.Description,
		"category", result.Category,
		"scope", int(result.Scope),
		"confidence", result.Confidence)

	return result, nil
}
