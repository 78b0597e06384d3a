package logging

import (
	"os"
	"strings"
	"testing"
)

// TestDisabledIsSilent checks that nothing is written when debug mode is off.
func TestDisabledIsSilent(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Config("should not appear %d", 1)

	if File() != "" {
		t.Errorf("expected no log file, got %s", File())
	}
	if IsCategoryEnabled(CategoryStore) {
		t.Error("store category should be disabled without debug mode")
	}
	if _, err := os.Stat(dir + "/logs"); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist, stat err=%v", err)
	}
}

// TestCategoriesWriteToFile checks enabled categories land in the log file
// and disabled ones do not.
func TestCategoriesWriteToFile(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(dir, Options{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"ai": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = Initialize(dir, Options{}) })

	Config("loaded %s", "config.yaml")
	SuggestDebug("%d rules matched", 4)
	ScanDebug("parsed %d services", 3)
	AI("this category is off")
	Sync()

	data, err := os.ReadFile(File())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)

	for _, want := range []string{"loaded config.yaml", "4 rules matched", "parsed 3 services", `"logger":"config"`, `"logger":"suggest"`, `"logger":"scan"`} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, "this category is off") {
		t.Error("disabled category was written")
	}
}

func TestInitializeRequiresDirInDebugMode(t *testing.T) {
	if err := Initialize("", Options{DebugMode: true}); err == nil {
		t.Error("expected error for empty data dir")
	}
	_ = Initialize("", Options{})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "debug",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
