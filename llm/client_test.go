package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/rolefit/llm"
	_ "github.com/c360studio/rolefit/llm/providers"
	"github.com/c360studio/rolefit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatReply writes an OpenAI-format completion.
func chatReply(w http.ResponseWriter, modelName, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model": modelName,
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
	})
}

// singleEndpoint builds a registry routing the question capability to url.
func singleEndpoint(url string) *model.Registry {
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityQuestion: {Preferred: []string{"test-model"}},
		},
		map[string]*model.EndpointConfig{
			"test-model": {Provider: "ollama", URL: url, Model: "test-model"},
		},
		"",
	)
}

func questionRequest() llm.Request {
	return llm.Request{
		Capability: model.CapabilityQuestion,
		Messages:   []llm.Message{{Role: "user", Content: "Generate question 1 of 10"}},
	}
}

func fastRetry(attempts int) llm.ClientOption {
	return llm.WithRetryConfig(llm.RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        10 * time.Millisecond,
	})
}

func TestClient_Complete_Success(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		chatReply(w, "test-model", `{"text": "Describe a debugging approach"}`)
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpoint(server.URL))

	temp := 0.7
	req := questionRequest()
	req.Temperature = &temp
	resp, err := client.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, `{"text": "Describe a debugging approach"}`, resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, "test-model", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
}

func TestClient_Complete_SingleAttemptByDefault(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	registry := singleEndpoint(server.URL)
	client := llm.NewClient(registry)

	_, err := client.Complete(context.Background(), questionRequest())

	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
	assert.Equal(t, http.StatusServiceUnavailable, llm.HTTPStatus(err))
	assert.Equal(t, int32(1), attempts.Load())

	health := registry.GetEndpointHealth("test-model")
	require.NotNil(t, health)
	assert.Equal(t, 1, health.FailureCount)
}

func TestClient_Complete_RetryWhenConfigured(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatReply(w, "test-model", "ok")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpoint(server.URL), fastRetry(3))

	resp, err := client.Complete(context.Background(), questionRequest())

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Complete_NoRetryOnFatalError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid API key"))
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpoint(server.URL), fastRetry(3))

	_, err := client.Complete(context.Background(), questionRequest())

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Contains(t, err.Error(), "invalid API key")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Complete_Fallback(t *testing.T) {
	var primaryAttempts, fallbackAttempts atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryAttempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackAttempts.Add(1)
		chatReply(w, "fallback-model", "from fallback")
	}))
	defer fallback.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilitySuggestion: {
				Preferred: []string{"primary"},
				Fallback:  []string{"fallback"},
			},
		},
		map[string]*model.EndpointConfig{
			"primary":  {Provider: "ollama", URL: primary.URL, Model: "primary-model"},
			"fallback": {Provider: "openai", URL: fallback.URL, Model: "fallback-model"},
		},
		"",
	)

	client := llm.NewClient(registry)

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: model.CapabilitySuggestion,
		Messages:   []llm.Message{{Role: "user", Content: "suggest"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, int32(1), primaryAttempts.Load())
	assert.Equal(t, int32(1), fallbackAttempts.Load())
}

func TestClient_Complete_OpenCircuitSkipsEndpoint(t *testing.T) {
	var primaryAttempts atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryAttempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(w, "fallback-model", "ok")
	}))
	defer fallback.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityQuestion: {Preferred: []string{"primary"}, Fallback: []string{"fallback"}},
		},
		map[string]*model.EndpointConfig{
			"primary":  {Provider: "ollama", URL: primary.URL, Model: "primary-model"},
			"fallback": {Provider: "ollama", URL: fallback.URL, Model: "fallback-model"},
		},
		"",
	)
	registry.SetHealthConfig(model.HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	client := llm.NewClient(registry)

	for range 3 {
		_, err := client.Complete(context.Background(), questionRequest())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), primaryAttempts.Load())
	assert.False(t, registry.IsEndpointAvailable("primary"))
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpoint(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, questionRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Complete_ValidationErrors(t *testing.T) {
	client := llm.NewClient(model.NewRegistry(nil, nil, ""))

	tests := []struct {
		name    string
		req     llm.Request
		wantErr string
	}{
		{
			name:    "empty capability",
			req:     llm.Request{Messages: []llm.Message{{Role: "user", Content: "hi"}}},
			wantErr: "capability is required",
		},
		{
			name:    "no messages",
			req:     llm.Request{Capability: model.CapabilityQuestion},
			wantErr: "at least one message is required",
		},
		{
			name:    "nothing configured",
			req:     questionRequest(),
			wantErr: "no models configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Complete(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, llm.IsFatal(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_Complete_UnknownProvider(t *testing.T) {
	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityQuestion: {Preferred: []string{"x"}},
		},
		map[string]*model.EndpointConfig{"x": {Provider: "carrier-pigeon", Model: "x"}},
		"",
	)

	_, err := llm.NewClient(registry).Complete(context.Background(), questionRequest())

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Contains(t, err.Error(), "unknown provider")
}
