package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arashek/ADE-stable-1.0-sub004/services"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers"
)

func TestAdapter_Initialize(t *testing.T) {
	t.Run("valid credential", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		a := New("openai-1", providers.Config{Credential: "sk-test", BaseURL: srv.URL})
		assert.NoError(t, a.Initialize(context.Background()))
	})

	t.Run("rejected credential", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		a := New("openai-1", providers.Config{Credential: "bad", BaseURL: srv.URL})
		err := a.Initialize(context.Background())
		require.Error(t, err)
		assert.Equal(t, services.ErrorTypeExternal, services.GetErrorType(err))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		a := New("openai-1", providers.Config{
			Credential: "sk-test",
			BaseURL:    "http://127.0.0.1:1",
			Timeout:    100 * time.Millisecond,
		})
		assert.Error(t, a.Initialize(context.Background()))
	})
}

func TestAdapter_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model) // mapped from the logical name
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-123",
			"created": 1700000000,
			"model":   "gpt-4o",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "hi there"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	a := New("openai-1", providers.Config{
		Credential: "sk-test",
		BaseURL:    srv.URL,
		ModelMap:   map[string]string{"default": "gpt-4o"},
	})

	resp, err := a.Generate(context.Background(), &providers.GenerateRequest{
		Model:    "default",
		Messages: []providers.Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "openai-1", resp.Provider)
	assert.Greater(t, resp.Latency, time.Duration(0))
	// 10 prompt + 5 completion tokens at gpt-4o pricing
	assert.InDelta(t, 10*0.000005+5*0.000015, resp.Cost, 1e-12)
}

func TestAdapter_Generate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	a := New("openai-1", providers.Config{Credential: "sk-test", BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), &providers.GenerateRequest{
		Messages: []providers.Message{{Role: "user", Content: "hello"}},
	})
	require.Error(t, err)

	var domainErr *services.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, services.ErrorTypeExternal, domainErr.Type)
	assert.Equal(t, "rate limit exceeded", domainErr.Message)
	assert.Equal(t, 429, domainErr.Details["status_code"])
}

func TestAdapter_EstimateCost(t *testing.T) {
	a := New("openai-1", providers.Config{Credential: "sk-test"})

	t.Run("nil request uses default estimate", func(t *testing.T) {
		want := 500*0.00000015 + 500*0.0000006
		assert.InDelta(t, want, a.EstimateCost(nil), 1e-12)
	})

	t.Run("request estimate scales with content", func(t *testing.T) {
		cost := a.EstimateCost(&providers.GenerateRequest{
			Model:     "gpt-4",
			MaxTokens: 100,
			Messages:  []providers.Message{{Role: "user", Content: "this prompt is forty characters long okay"}},
		})
		want := 10*0.00003 + 100*0.00006
		assert.InDelta(t, want, cost, 1e-12)
	})
}

func TestAdapter_Capabilities(t *testing.T) {
	a := New("openai-1", providers.Config{
		Credential:   "sk-test",
		Capabilities: []string{"chat", "code"},
	})

	assert.True(t, a.HasCapability("chat"))
	assert.False(t, a.HasCapability("embeddings"))
	assert.Contains(t, a.ListModels(), "gpt-4o")
	assert.Equal(t, "openai", a.Type())
	assert.Equal(t, "openai-1", a.ID())
}
