package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "openai/gpt-5.2"})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	svc, err := NewLLMService(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
}

func TestChat_JSONMode(t *testing.T) {
	tests := []struct {
		name       string
		json       bool
		wantFormat bool
	}{
		{"json requested", true, true},
		{"free text", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatCompletionRequest
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"a\":1}"},"finish_reason":"stop"}]}`))
			})

			out, err := svc.Chat(context.Background(), []driven.ChatMessage{
				{Role: driven.RoleSystem, Content: "sys"},
				{Role: driven.RoleUser, Content: "hi"},
			}, driven.ChatOptions{JSON: tt.json})
			require.NoError(t, err)

			assert.Equal(t, `{"a":1}`, out)
			assert.Equal(t, "gpt-5.2", got.Model)
			assert.Len(t, got.Messages, 2)
			if tt.wantFormat {
				require.NotNil(t, got.ResponseFormat)
				assert.Equal(t, "json_object", got.ResponseFormat.Type)
			} else {
				assert.Nil(t, got.ResponseFormat)
			}
		})
	}
}

func TestChat_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"bad gateway", http.StatusBadGateway, `upstream`, true},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"no"}}`, false},
		{"unknown model", http.StatusNotFound, `{"error":{"message":"model not found"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}}, driven.ChatOptions{})
			require.Error(t, err)

			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "openai", perr.Provider)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}

func TestChat_NoChoices(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.True(t, domain.IsRetryable(err))
}

func TestChat_UnreachableIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: url})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), nil, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.True(t, domain.IsRetryable(err))
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	assert.NoError(t, svc.Ping(context.Background()))
}
