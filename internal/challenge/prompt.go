package challenge

import (
	"fmt"
	"strings"
	"time"
)

// PromptHistoryLimit caps how many history entries are replayed to the provider.
const PromptHistoryLimit = 10

// BuildPromptContext serializes the services, notes and recent history of a
// challenge into plain text for grounding AI provider queries. The output
// depends only on the record, so identical records produce identical text.
func BuildPromptContext(c *Context) string {
	if c == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "Challenge: %s (%s)\n", c.Name, c.Type)

	services := c.OpenServices()
	sb.WriteString("Known services:\n")
	if len(services) == 0 {
		sb.WriteString("- none yet (no scan loaded)\n")
	}
	for _, s := range services {
		fmt.Fprintf(&sb, "- %s %d/%s %s", s.Host, s.Port, s.Protocol, s.Name)
		if s.Version != "" {
			fmt.Fprintf(&sb, " (%s)", s.Version)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Notes:\n")
	if len(c.Notes) == 0 {
		sb.WriteString("- none\n")
	}
	for _, n := range c.Notes {
		fmt.Fprintf(&sb, "- [%s] %s\n", n.CreatedAt.UTC().Format(time.RFC3339), oneLine(n.Text))
	}

	history := c.History
	if len(history) > PromptHistoryLimit {
		history = history[len(history)-PromptHistoryLimit:]
	}
	sb.WriteString("Recent actions:\n")
	if len(history) == 0 {
		sb.WriteString("- none\n")
	}
	for _, h := range history {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", h.At.UTC().Format(time.RFC3339), h.Kind, oneLine(h.Summary))
	}
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
