package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"htbnerd/internal/logging"
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls Google Gemini through the genai SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider selected but GEMINI_API_KEY is not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Name implements types.LLMClient.
func (c *GeminiClient) Name() string { return "gemini/" + c.model }

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	logging.AIDebug("[Gemini] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](Temperature),
		MaxOutputTokens: MaxTokens,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		gc.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), gc)
	if err != nil {
		logging.AIError("[Gemini] CompleteWithSystem failed after %v: %v", time.Since(start), err)
		return "", fmt.Errorf("gemini: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("gemini: no completion returned")
	}
	logging.AI("[Gemini] CompleteWithSystem: completed in %v response_len=%d", time.Since(start), len(answer))
	return answer, nil
}
