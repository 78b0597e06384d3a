package config

// AI provider names.
const (
	ProviderAuto   = "auto"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderStub   = "stub"
)

// ValidProviders lists all supported provider settings.
var ValidProviders = []string{ProviderAuto, ProviderOpenAI, ProviderOllama, ProviderGemini, ProviderStub}

// OpenAIConfig configures the OpenAI chat completions client.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// OllamaConfig configures a local Ollama server.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GeminiConfig configures the Google Gemini client.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string `yaml:"base_url"`
}

// ResolveProvider turns "auto" into a concrete provider: OpenAI when an
// OpenAI key is configured, then Gemini when a Gemini key is configured,
// otherwise a local Ollama server.
func (c *Config) ResolveProvider() string {
	if c.Provider != ProviderAuto && c.Provider != "" {
		return c.Provider
	}
	switch {
	case c.OpenAI.APIKey != "":
		return ProviderOpenAI
	case c.Gemini.APIKey != "":
		return ProviderGemini
	default:
		return ProviderOllama
	}
}
