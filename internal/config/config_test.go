package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"htbnerd/internal/logging"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTBNERD_PROVIDER", "OPENAI_API_KEY", "HTBNERD_OPENAI_MODEL",
		"OLLAMA_BASE_URL", "HTBNERD_OLLAMA_MODEL", "GEMINI_API_KEY",
		"HTBNERD_GEMINI_MODEL", "HTBNERD_DATA_DIR", "HTBNERD_RULES",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderAuto, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 5, cfg.ConciseLimit)
	assert.Equal(t, 120*time.Second, cfg.GetAITimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFilesGiveDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "user.yaml"), filepath.Join(dir, "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().OpenAI, cfg.OpenAI)
	assert.Equal(t, DefaultConfig().DataDir, cfg.DataDir)
	assert.Empty(t, cfg.Sources())
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	user := filepath.Join(dir, "user", "config.yaml")
	project := filepath.Join(dir, "project", "config.yaml")

	writeFile(t, user, `
provider: openai
openai:
  api_key: user-key
  model: gpt-4o
ollama:
  model: mistral
concise_limit: 3
`)
	writeFile(t, project, `
openai:
  model: gpt-4.1-mini
concise_limit: 7
`)

	cfg, err := Load(user, project)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "user-key", cfg.OpenAI.APIKey, "nested keys absent from the project file survive")
	assert.Equal(t, "gpt-4.1-mini", cfg.OpenAI.Model)
	assert.Equal(t, "mistral", cfg.Ollama.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 7, cfg.ConciseLimit)
	assert.Equal(t, []string{user, project}, cfg.Sources())
}

func TestLoad_EnvWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	project := filepath.Join(dir, "config.yaml")
	writeFile(t, project, "provider: ollama\nollama:\n  base_url: http://gpu-box:11434\n")

	t.Setenv("HTBNERD_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("HTBNERD_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("OLLAMA_BASE_URL", "http://127.0.0.1:11434")
	t.Setenv("HTBNERD_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("HTBNERD_RULES", filepath.Join(dir, "rules.yaml"))

	cfg, err := Load("", project)
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "g-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, filepath.Join(dir, "data", "challenges"), cfg.ChallengesDir())
	assert.Equal(t, filepath.Join(dir, "rules.yaml"), cfg.RulesFile)
	assert.Equal(t, []string{
		project, "$HTBNERD_PROVIDER", "$OLLAMA_BASE_URL", "$GEMINI_API_KEY",
		"$HTBNERD_GEMINI_MODEL", "$HTBNERD_DATA_DIR", "$HTBNERD_RULES",
	}, cfg.Sources())
}

func TestLogSources(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	user := filepath.Join(dir, "config.yaml")
	writeFile(t, user, "concise_limit: 4\n")
	t.Setenv("OPENAI_API_KEY", "sk-secret")

	cfg, err := Load(user, "")
	require.NoError(t, err)

	require.NoError(t, logging.Initialize(dir, LoggingConfig{DebugMode: true, Level: "info"}.Options()))
	t.Cleanup(func() { _ = logging.Initialize(dir, logging.Options{}) })
	cfg.LogSources()
	logging.Sync()

	data, err := os.ReadFile(logging.File())
	require.NoError(t, err)
	assert.Contains(t, string(data), "applied "+user)
	assert.Contains(t, string(data), "applied $OPENAI_API_KEY")
	assert.NotContains(t, string(data), "sk-secret")
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "provider: [unterminated\n")
	_, err := Load(bad, "")
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	writeFile(t, unknown, "provider: claude\n")
	_, err = Load(unknown, "")
	assert.ErrorContains(t, err, "invalid provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = " " }},
		{"bad timeout", func(c *Config) { c.AITimeout = "soon" }},
		{"negative limit", func(c *Config) { c.ConciseLimit = -1 }},
		{"bad theme", func(c *Config) { c.Theme = "neon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Provider = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderAuto, cfg.Provider)
}

func TestResolveProvider(t *testing.T) {
	t.Run("auto prefers openai", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OpenAI.APIKey = "oa"
		cfg.Gemini.APIKey = "g"
		assert.Equal(t, ProviderOpenAI, cfg.ResolveProvider())
	})
	t.Run("auto falls back to gemini", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Gemini.APIKey = "g"
		assert.Equal(t, ProviderGemini, cfg.ResolveProvider())
	})
	t.Run("auto without keys uses ollama", func(t *testing.T) {
		assert.Equal(t, ProviderOllama, DefaultConfig().ResolveProvider())
	})
	t.Run("explicit provider is kept", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider = ProviderStub
		cfg.OpenAI.APIKey = "oa"
		assert.Equal(t, ProviderStub, cfg.ResolveProvider())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Provider = ProviderOllama
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, loaded.Sources())
	loaded.sources = nil
	assert.Equal(t, cfg, loaded)
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{DebugMode: true, Level: "debug", Categories: map[string]bool{"ai": false}}
	opts := lc.Options()
	assert.True(t, opts.DebugMode)
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, lc.Categories, opts.Categories)
}
