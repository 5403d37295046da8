// Package climatiq imports emission factors from the Climatiq search API into
// the local factor catalogue.
package climatiq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
)

// DefaultBaseURL is the public Climatiq API root.
const DefaultBaseURL = "https://api.climatiq.io/v1"

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Retry   service.RetryOptions
	Timeout time.Duration
}

// Client is a bearer-token client for the emission factor search endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      service.RetryOptions
}

// NewClient returns a client. An empty API key yields common.ErrMissingConfig.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: climatiq.api_key is not set", common.ErrMissingConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retry:      cfg.Retry,
	}, nil
}

// SearchRequest filters the factor search. Zero fields are omitted.
type SearchRequest struct {
	Query    string
	Category string
	Region   string
	Year     int
	Limit    int
}

func (r SearchRequest) values() url.Values {
	v := url.Values{}
	if r.Query != "" {
		v.Set("query", r.Query)
	}
	if r.Category != "" {
		v.Set("category", r.Category)
	}
	if r.Region != "" {
		v.Set("region", r.Region)
	}
	if r.Year > 0 {
		v.Set("year", strconv.Itoa(r.Year))
	}
	if r.Limit > 0 {
		v.Set("limit", strconv.Itoa(r.Limit))
	}
	return v
}

// Factor is one search result.
type Factor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Unit        string  `json:"unit"`
	Region      string  `json:"region"`
	Source      string  `json:"source"`
	Factor      float64 `json:"factor"`
	Year        int     `json:"year"`
}

type searchResponse struct {
	Results []Factor `json:"results"`
}

// Search queries /emission-factors, retrying transport failures, 5xx and 429.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Factor, error) {
	endpoint := c.baseURL + "/emission-factors"
	if q := req.values().Encode(); q != "" {
		endpoint += "?" + q
	}

	var factors []Factor
	err := common.WithRetry(ctx, func() error {
		var err error
		factors, err = c.search(ctx, endpoint)
		return err
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("climatiq search %q: %w", req.Query, err)
	}
	return factors, nil
}

func (c *Client) search(ctx context.Context, endpoint string) ([]Factor, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.RateLimited(fmt.Errorf("climatiq status %d", resp.StatusCode),
			common.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &common.RetryableError{Err: fmt.Errorf("climatiq status %d: %s", resp.StatusCode, body), Retryable: true}
	default:
		return nil, common.Permanent(fmt.Errorf("climatiq status %d: %s", resp.StatusCode, body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	return parsed.Results, nil
}
