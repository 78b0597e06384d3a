package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"htbnerd/internal/logging"
)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaClient calls a local Ollama server's /api/chat endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1:8b"
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

// Name implements types.LLMClient.
func (c *OllamaClient) Name() string { return "ollama/" + c.model }

// CompleteWithSystem sends a non-streaming chat request.
func (c *OllamaClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	logging.AIDebug("[Ollama] CompleteWithSystem: model=%s base=%s", c.model, c.baseURL)

	req := ollamaRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	req.Options.Temperature = Temperature

	var resp ollamaResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/api/chat", nil, req, &resp); err != nil {
		logging.AIError("[Ollama] CompleteWithSystem failed after %v: %v", time.Since(start), err)
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}

	answer := strings.TrimSpace(resp.Message.Content)
	if answer == "" {
		return "", fmt.Errorf("ollama: empty response")
	}
	logging.AI("[Ollama] CompleteWithSystem: completed in %v response_len=%d", time.Since(start), len(answer))
	return answer, nil
}
