package types

import (
	"context"
)

// LLMClient defines the interface for AI provider interactions.
// Implementations must honor ctx cancellation and deadlines so a slow
// provider surfaces a bounded-wait failure instead of hanging the shell.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Name identifies the provider and model, e.g. "openai:gpt-4o-mini".
	Name() string
}

// ServiceSource is a read-only view over the detected services of a challenge.
type ServiceSource interface {
	// Services returns a sorted copy; callers may not mutate the owner through it.
	Services() []Service
}
