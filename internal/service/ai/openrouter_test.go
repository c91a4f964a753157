package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/model/remoteconfig"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

type configStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func storeWithKey(t *testing.T, key, model string) *configStore {
	t.Helper()
	doc := remoteconfig.Default(model, 50, 30)
	doc.OpenRouterKey = key
	data, err := remoteconfig.Encode(doc)
	require.NoError(t, err)
	return &configStore{blobs: map[string][]byte{remoteconfig.FileName: data}}
}

func (c *configStore) Load(_ context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.blobs[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (c *configStore) Save(_ context.Context, name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[name] = append([]byte(nil), data...)
	return nil
}

func completionServer(t *testing.T, status int, reply string, capture *http.Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			*capture = *r
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSuccess(t *testing.T) {
	var seen http.Request
	srv := completionServer(t, http.StatusOK, "короткий ответ", &seen)

	gateway := NewOpenRouter(OpenRouterConfig{
		BaseURL: srv.URL,
		AppName: "E-Genius5 AI",
		Referer: "https://example.invalid",
	}, storeWithKey(t, "sk-test", "test-model"))

	reply, err := gateway.Complete(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Equal(t, "короткий ответ", reply)

	require.Equal(t, "Bearer sk-test", seen.Header.Get("Authorization"))
	require.Equal(t, "E-Genius5 AI", seen.Header.Get("X-Title"))
	require.Equal(t, "https://example.invalid", seen.Header.Get("HTTP-Referer"))
	require.Equal(t, "/chat/completions", seen.URL.Path)
}

func TestCompleteSendsSystemPromptAndModel(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	gateway := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL}, storeWithKey(t, "sk-test", "test-model"))
	_, err := gateway.Complete(context.Background(), "вопрос")
	require.NoError(t, err)

	require.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	require.Equal(t, "system", gotBody.Messages[0].Role)
	require.Equal(t, SystemPrompt, gotBody.Messages[0].Content)
	require.Equal(t, "вопрос", gotBody.Messages[1].Content)
}

func TestCompleteRateLimited(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests, "", nil)
	gateway := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL}, storeWithKey(t, "sk-test", "m"))

	_, err := gateway.Complete(context.Background(), "вопрос")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestCompleteServerError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "", nil)
	gateway := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL}, storeWithKey(t, "sk-test", "m"))

	_, err := gateway.Complete(context.Background(), "вопрос")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRateLimited)
}

func TestCompleteMissingKey(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "ok", nil)
	gateway := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL}, storeWithKey(t, "", "m"))

	_, err := gateway.Complete(context.Background(), "вопрос")
	require.Error(t, err)
}

func TestCompleteFallbackModel(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	gateway := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL, FallbackModel: "fallback-model"},
		storeWithKey(t, "sk-test", ""))

	_, err := gateway.Complete(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Equal(t, "fallback-model", gotBody.Model)
}

func TestCompleteKeyRotationWithoutRestart(t *testing.T) {
	var seenAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	blobs := storeWithKey(t, "sk-old", "m")
	gateway := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL}, blobs)

	_, err := gateway.Complete(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-old", seenAuth)

	doc := remoteconfig.Default("m", 50, 30)
	doc.OpenRouterKey = "sk-new"
	data, err := remoteconfig.Encode(doc)
	require.NoError(t, err)
	require.NoError(t, blobs.Save(context.Background(), remoteconfig.FileName, data))

	_, err = gateway.Complete(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-new", seenAuth)
}
