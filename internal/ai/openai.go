package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"htbnerd/internal/logging"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient calls the OpenAI chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

// Name implements types.LLMClient.
func (c *OpenAIClient) Name() string { return "openai/" + c.model }

// CompleteWithSystem sends a prompt with a system message.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	start := time.Now()
	logging.AIDebug("[OpenAI] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	req := openAIRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	}
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

	var resp openAIResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", header, req, &resp); err != nil {
		logging.AIError("[OpenAI] CompleteWithSystem failed after %v: %v", time.Since(start), err)
		return "", fmt.Errorf("openai: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai: API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no completion returned")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	logging.AI("[OpenAI] CompleteWithSystem: completed in %v response_len=%d", time.Since(start), len(answer))
	return answer, nil
}
