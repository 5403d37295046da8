package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponder(status int, body string) httpmock.Responder {
	return func(_ *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "application/json")
		return resp, nil
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "openai", config: Config{Provider: "openai", APIKey: "k"}},
		{name: "anthropic", config: Config{Provider: "Anthropic", APIKey: "k"}},
		{name: "missing key", config: Config{Provider: "openai"}, wantErr: common.ErrMissingConfig},
		{name: "unknown provider", config: Config{Provider: "gemini", APIKey: "k"}, wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	client, err := newOpenAIClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	var captured openAIRequest
	httpmock.RegisterResponder(http.MethodPost, "https://api.openai.com/v1/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				return nil, err
			}
			return jsonResponder(http.StatusOK, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"{\"category\":\"Energy\"}"}}]}`)(req)
		})

	content, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"Energy"}`, content)

	assert.Equal(t, "gpt-4o", captured.Model)
	assert.InDelta(t, 0.1, captured.Temperature, 1e-9)
	assert.Equal(t, "json_object", captured.ResponseFormat["type"])
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
}

func TestOpenAIClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		rateLimit bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true, rateLimit: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "unauthorized", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newOpenAIClient(Config{APIKey: "k"})
			require.NoError(t, err)
			httpmock.ActivateNonDefault(client.httpClient)
			t.Cleanup(httpmock.DeactivateAndReset)

			httpmock.RegisterResponder(http.MethodPost, "https://api.openai.com/v1/chat/completions",
				jsonResponder(tt.status, `{"error":{"message":"nope"}}`))

			_, err = client.Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Equal(t, tt.rateLimit, errors.Is(err, common.ErrRateLimit))
			assert.Equal(t, tt.retryable, common.IsRetryable(err))
		})
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	client, err := newAnthropicClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "https://api.anthropic.com/v1/messages",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-key", req.Header.Get("X-Api-Key"))
			return jsonResponder(http.StatusOK, `{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"model": "claude-sonnet-4-5-20250929",
				"content": [{"type": "text", "text": "{\"category\":\"Business Travel\",\"scope\":3}"}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 10, "output_tokens": 5}
			}`)(req)
		})

	content, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"Business Travel","scope":3}`, content)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestAnthropicClient_ServerError(t *testing.T) {
	client, err := newAnthropicClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "https://api.anthropic.com/v1/messages",
		jsonResponder(http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))

	_, err = client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
}
