package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"htbnerd/internal/logging"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".htbnerd"

// Config holds all htbnerd configuration.
type Config struct {
	// AI provider selection: auto, openai, ollama, gemini, stub
	Provider string `yaml:"provider"`

	OpenAI OpenAIConfig `yaml:"openai"`
	Ollama OllamaConfig `yaml:"ollama"`
	Gemini GeminiConfig `yaml:"gemini"`

	// Challenge records live in DataDir/challenges.
	DataDir string `yaml:"data_dir"`

	// Optional YAML rules file appended to the built-in catalog.
	RulesFile string `yaml:"rules_file"`

	AITimeout    string `yaml:"ai_timeout"`
	ConciseLimit int    `yaml:"concise_limit"`

	// Theme: auto, light, dark
	Theme string `yaml:"theme"`

	Logging LoggingConfig `yaml:"logging"`

	// Files and environment variables applied by Load, in order.
	sources []string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderAuto,
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:8b",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		DataDir:      DefaultDataDir(),
		AITimeout:    "120s",
		ConciseLimit: 5,
		Theme:        "auto",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir returns ~/.htbnerd, or ./.htbnerd when the home
// directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultUserConfigPath returns ~/.htbnerd/config.yaml.
func DefaultUserConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// DefaultProjectConfigPath returns ./.htbnerd/config.yaml.
func DefaultProjectConfigPath() string {
	return filepath.Join(DirName, "config.yaml")
}

// Load builds the configuration from defaults, the user file, the project
// file and finally the environment. Missing files are skipped; empty paths
// are ignored.
func Load(userPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{userPath, projectPath} {
		if path == "" {
			continue
		}
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Sources lists the config files and environment variables Load applied.
func (c *Config) Sources() []string { return slices.Clone(c.sources) }

// LogSources writes the applied sources to the config log category. Call it
// once file logging is initialized, since the data dir comes from Load.
func (c *Config) LogSources() {
	if len(c.sources) == 0 {
		logging.Config("no config files or env overrides, using defaults")
		return
	}
	for _, src := range c.sources {
		logging.Config("applied %s", src)
	}
}

// overlay unmarshals a YAML file on top of c. Keys absent from the file
// keep their current values, which gives the nested merge for free.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.sources = append(c.sources, path)
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("HTBNERD_PROVIDER"); p != "" {
		c.Provider = p
		c.sources = append(c.sources, "$HTBNERD_PROVIDER")
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
		c.sources = append(c.sources, "$OPENAI_API_KEY")
	}
	if model := os.Getenv("HTBNERD_OPENAI_MODEL"); model != "" {
		c.OpenAI.Model = model
		c.sources = append(c.sources, "$HTBNERD_OPENAI_MODEL")
	}

	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		c.Ollama.BaseURL = url
		c.sources = append(c.sources, "$OLLAMA_BASE_URL")
	}
	if model := os.Getenv("HTBNERD_OLLAMA_MODEL"); model != "" {
		c.Ollama.Model = model
		c.sources = append(c.sources, "$HTBNERD_OLLAMA_MODEL")
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
		c.sources = append(c.sources, "$GEMINI_API_KEY")
	}
	if model := os.Getenv("HTBNERD_GEMINI_MODEL"); model != "" {
		c.Gemini.Model = model
		c.sources = append(c.sources, "$HTBNERD_GEMINI_MODEL")
	}

	if dir := os.Getenv("HTBNERD_DATA_DIR"); dir != "" {
		c.DataDir = dir
		c.sources = append(c.sources, "$HTBNERD_DATA_DIR")
	}
	if path := os.Getenv("HTBNERD_RULES"); path != "" {
		c.RulesFile = path
		c.sources = append(c.sources, "$HTBNERD_RULES")
	}
}

// ChallengesDir returns the directory holding challenge records.
func (c *Config) ChallengesDir() string {
	return filepath.Join(c.DataDir, "challenges")
}

// GetAITimeout returns the AI call timeout as a duration.
func (c *Config) GetAITimeout() time.Duration {
	d, err := time.ParseDuration(c.AITimeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// ValidThemes lists the accepted theme values.
var ValidThemes = []string{"auto", "light", "dark"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderAuto
	}
	if !slices.Contains(ValidProviders, c.Provider) {
		return fmt.Errorf("invalid provider: %s (valid: %v)", c.Provider, ValidProviders)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.AITimeout != "" {
		if _, err := time.ParseDuration(c.AITimeout); err != nil {
			return fmt.Errorf("invalid ai_timeout %q: %w", c.AITimeout, err)
		}
	}
	if c.ConciseLimit < 0 {
		return fmt.Errorf("concise_limit must not be negative")
	}
	if c.Theme != "" && !slices.Contains(ValidThemes, c.Theme) {
		return fmt.Errorf("invalid theme: %s (valid: %v)", c.Theme, ValidThemes)
	}
	return nil
}
