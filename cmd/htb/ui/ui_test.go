package ui

import (
	"strings"
	"testing"
)

func TestThemeFor(t *testing.T) {
	if !ThemeFor("dark").IsDark {
		t.Fatalf("expected dark theme for \"dark\"")
	}
	if ThemeFor("LIGHT").IsDark {
		t.Fatalf("expected light theme for \"LIGHT\"")
	}
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("HTBNERD_LIGHT_MODE", "")
	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Errorf("expected dark theme for black background")
	}

	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Errorf("expected light theme for white background")
	}

	t.Setenv("COLORFGBG", "")
	t.Setenv("HTBNERD_LIGHT_MODE", "1")
	if DetectTheme().IsDark {
		t.Errorf("expected light theme when HTBNERD_LIGHT_MODE=1")
	}
}

func TestTable(t *testing.T) {
	table := NewTable("Challenges", "Name", "Type", "Updated")
	table.AddRow("lame", "machine", "2025-03-01 12:00")
	table.AddRow("meow")

	view := table.View(DefaultStyles(), "none")
	for _, want := range []string{"Challenges", "Name", "lame", "machine", "meow"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "none") {
		t.Errorf("non-empty table rendered empty state")
	}
}

func TestTable_Empty(t *testing.T) {
	view := NewTable("Challenges", "Name").View(DefaultStyles(), "No challenges yet.")
	if !strings.Contains(view, "No challenges yet.") {
		t.Errorf("expected empty state, got:\n%s", view)
	}
}

func TestPanel(t *testing.T) {
	s := NewStyles(DarkTheme())
	out := s.Panel("smb", "smbclient -L //10.10.10.3 -N\n", Info)
	if !strings.Contains(out, "smb") || !strings.Contains(out, "smbclient -L //10.10.10.3 -N") {
		t.Errorf("panel missing content:\n%s", out)
	}
	if !strings.Contains(s.Banner(), "help") {
		t.Errorf("banner should mention help")
	}
}
