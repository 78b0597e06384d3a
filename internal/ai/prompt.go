package ai

import (
	"fmt"
	"strings"
)

// Mode selects the system prompt flavour.
type Mode string

const (
	ModeGeneral Mode = "general"
	ModeQuiz    Mode = "quiz"
)

const baseSystemPrompt = `You are an ethical Hack The Box assistant. Only provide legal guidance for authorized lab targets.
Respond with concrete, copy-pasteable commands, short explanations and risk notes.
Never claim to have run commands; the operator runs everything.`

const quizSystemPrompt = `Focus on Hack The Box Starting Point quiz answers. Be concise and name the relevant service or step.`

// SystemPrompt builds the system prompt for mode, grounded on the
// challenge summary produced by challenge.BuildPromptContext.
func SystemPrompt(mode Mode, promptContext string) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	if mode == ModeQuiz {
		b.WriteString("\n")
		b.WriteString(quizSystemPrompt)
	}
	if ctx := strings.TrimSpace(promptContext); ctx != "" {
		fmt.Fprintf(&b, "\n\nCurrent challenge context:\n%s", ctx)
	}
	return b.String()
}
