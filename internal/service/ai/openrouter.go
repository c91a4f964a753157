package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/model/remoteconfig"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

// OpenRouterConfig carries the HTTP gateway settings. The API key is not here:
// it lives in the remote config document and is re-read on every call, so a
// key rotated by hand on the store takes effect without a restart.
type OpenRouterConfig struct {
	BaseURL       string
	FallbackModel string
	AppName       string
	Referer       string
	Timeout       time.Duration
}

// OpenRouter is a CompletionProvider over the OpenRouter chat completions API.
type OpenRouter struct {
	cfg        OpenRouterConfig
	blobs      store.BlobStore
	httpClient *http.Client
}

// NewOpenRouter builds the gateway. The blob store supplies the sibling
// config document holding the API key and model override.
func NewOpenRouter(cfg OpenRouterConfig, blobs store.BlobStore) *OpenRouter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouter{
		cfg:        cfg,
		blobs:      blobs,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ CompletionProvider = (*OpenRouter)(nil)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt with the fixed system preamble and returns the
// model's reply. HTTP 429 maps to ErrRateLimited; every other failure is a
// gateway error.
func (o *OpenRouter) Complete(ctx context.Context, prompt string) (string, error) {
	key, model, err := o.credentials(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", o.cfg.Referer)
	}
	if o.cfg.AppName != "" {
		req.Header.Set("X-Title", o.cfg.AppName)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("completion api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion response carried no choices")
	}

	log.Printf("[ai] openrouter reply model=%s length=%d", model, len(decoded.Choices[0].Message.Content))
	return decoded.Choices[0].Message.Content, nil
}

// credentials re-reads the remote config document for the API key and the
// model override.
func (o *OpenRouter) credentials(ctx context.Context) (key, model string, err error) {
	data, err := o.blobs.Load(ctx, remoteconfig.FileName)
	if err != nil {
		return "", "", fmt.Errorf("load remote config: %w", err)
	}

	doc := remoteconfig.Decode(data)
	if doc == nil || doc.OpenRouterKey == "" {
		return "", "", fmt.Errorf("openrouter key missing from %s", remoteconfig.FileName)
	}

	model = doc.AIModel
	if model == "" {
		model = o.cfg.FallbackModel
	}
	return doc.OpenRouterKey, model, nil
}
