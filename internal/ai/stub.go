package ai

import "context"

// StubMessage is returned when no provider is configured.
const StubMessage = "AI provider not configured. Set OPENAI_API_KEY or GEMINI_API_KEY, or run Ollama locally and set OLLAMA_BASE_URL."

// StubClient answers every question with StubMessage. It keeps the shell
// usable offline.
type StubClient struct{}

// Name implements types.LLMClient.
func (StubClient) Name() string { return "stub" }

// CompleteWithSystem implements types.LLMClient.
func (StubClient) CompleteWithSystem(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return StubMessage, nil
}
