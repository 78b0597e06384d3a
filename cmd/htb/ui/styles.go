// Package ui provides the visual styling for the htb interactive shell.
// Colors follow the Hack The Box palette with light/dark mode support.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Dark Mode Colors (default, matches the HTB site)
	DarkBackground = lipgloss.Color("#141d2b")
	DarkForeground = lipgloss.Color("#a4b1cd")
	DarkPrimary    = lipgloss.Color("#9fef00") // HTB green
	DarkMuted      = lipgloss.Color("#5c6a85")
	DarkBorder     = lipgloss.Color("#2a3850")

	// Light Mode Colors
	LightBackground = lipgloss.Color("#f4f5f6")
	LightForeground = lipgloss.Color("#101f38")
	LightPrimary    = lipgloss.Color("#4c8a00")
	LightMuted      = lipgloss.Color("#6b7689")
	LightBorder     = lipgloss.Color("#dce0e5")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#ff3e3e")
	Success     = lipgloss.Color("#9fef00")
	Warning     = lipgloss.Color("#ffaf00")
	Info        = lipgloss.Color("#2196f3")
	Magenta     = lipgloss.Color("#cf8dfb")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Muted:      LightMuted,
		Border:     LightBorder,
		IsDark:     false,
	}
}

// ThemeFor maps a config value (auto, light, dark) to a theme.
func ThemeFor(name string) Theme {
	switch strings.ToLower(name) {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	default:
		return DetectTheme()
	}
}

// DetectTheme guesses the terminal background from COLORFGBG and falls
// back to dark mode, which is what most pentest terminals run.
func DetectTheme() Theme {
	if os.Getenv("HTBNERD_LIGHT_MODE") == "1" {
		return LightTheme()
	}
	// Format is "foreground;background"; 7 and 9-15 are light backgrounds.
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) >= 2 {
		if bg, err := strconv.Atoi(parts[len(parts)-1]); err == nil && (bg == 7 || bg >= 9) {
			return LightTheme()
		}
	}
	return DarkTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Text
	Title lipgloss.Style
	Body  lipgloss.Style
	Muted lipgloss.Style
	Bold  lipgloss.Style

	// Interactive
	Prompt    lipgloss.Style
	UserInput lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Components
	Spinner lipgloss.Style
	Divider lipgloss.Style
	Command lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		UserInput: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Primary),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Command: lipgloss.NewStyle().
			Foreground(theme.Primary),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Panel draws a rounded box with a title, in the given border color.
func (s Styles) Panel(title, body string, border lipgloss.Color) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
	if title == "" {
		return box.Render(strings.TrimRight(body, "\n"))
	}
	head := lipgloss.NewStyle().Foreground(border).Bold(true).Render(title)
	return box.Render(head + "\n" + strings.TrimRight(body, "\n"))
}

// Banner is the welcome text shown when the shell starts.
func (s Styles) Banner() string {
	body := s.Body.Render("Type ") + s.Bold.Render("help") +
		s.Body.Render(" to see available commands. Type ") + s.Bold.Render("exit") +
		s.Body.Render(" to quit.")
	return s.Panel("HTB Interactive Assistant", body, s.Theme.Primary)
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	return s.Divider.Render(strings.Repeat("─", width))
}
