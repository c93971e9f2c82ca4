package provider

import (
	"context"
	"os"
)

// AuthType selects the provider backend. The factory switch over it is
// exhaustive; an unknown tag is a fatal configuration error, never a silent
// default.
type AuthType string

const (
	AuthGeminiAPIKey AuthType = "gemini-api-key"
	AuthOpenAI       AuthType = "openai"
	AuthOllama       AuthType = "ollama"
)

// FactoryConfig is everything needed to build a generator. Zero fields take
// provider defaults or environment fallbacks.
type FactoryConfig struct {
	AuthType    AuthType
	Model       string
	APIKey      string
	OrgID       string
	BaseURL     string
	Temperature float32
	MaxTokens   int32

	// Getenv overrides environment lookup. Nil means os.Getenv.
	Getenv func(string) string
}

func (c *FactoryConfig) env(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

// Default models per provider, applied only when the config names none.
const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOllamaModel = "llama3.2"
)

// modelAliases remaps friendly names to provider-specific ids. Unknown
// names pass through unchanged.
var modelAliases = map[AuthType]map[string]string{
	AuthOpenAI: {
		"gemini-2.5-flash": "gpt-4o-mini",
		"gemini-2.5-pro":   "gpt-4o",
	},
	AuthOllama: {
		"gemini-2.5-flash": "llama3.2",
		"gemini-2.5-pro":   "llama3.3",
	},
}

// MapModelName resolves a model name for the given provider, falling back
// to the name itself when no alias exists.
func MapModelName(auth AuthType, model string) string {
	if aliases, ok := modelAliases[auth]; ok {
		if mapped, ok := aliases[model]; ok {
			return mapped
		}
	}
	return model
}

// ModelProfile describes per-model capabilities the callers care about.
type ModelProfile struct {
	ContextWindow int32
	SupportsTools bool
}

var modelProfiles = map[string]ModelProfile{
	"gemini-2.5-flash": {ContextWindow: 1_048_576, SupportsTools: true},
	"gemini-2.5-pro":   {ContextWindow: 1_048_576, SupportsTools: true},
	"gpt-4o":           {ContextWindow: 128_000, SupportsTools: true},
	"gpt-4o-mini":      {ContextWindow: 128_000, SupportsTools: true},
	"llama3.2":         {ContextWindow: 128_000, SupportsTools: true},
	"llama3.3":         {ContextWindow: 128_000, SupportsTools: true},
	"qwen2.5-coder":    {ContextWindow: 32_768, SupportsTools: true},
}

var defaultProfile = ModelProfile{ContextWindow: 32_768, SupportsTools: false}

// GetModelProfile returns the profile for a model, or a conservative
// default for models not in the table.
func GetModelProfile(model string) ModelProfile {
	if p, ok := modelProfiles[model]; ok {
		return p
	}
	return defaultProfile
}

// NewGenerator builds a ContentGenerator for the configured auth type.
func NewGenerator(ctx context.Context, cfg FactoryConfig) (ContentGenerator, error) {
	switch cfg.AuthType {
	case AuthGeminiAPIKey:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = cfg.env("GEMINI_API_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = defaultGeminiModel
		}
		return NewGeminiGenerator(ctx, GeminiConfig{
			APIKey: apiKey,
			Model:  MapModelName(AuthGeminiAPIKey, model),
		})

	case AuthOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = cfg.env("OPENAI_API_KEY")
		}
		orgID := cfg.OrgID
		if orgID == "" {
			orgID = cfg.env("OPENAI_ORG_ID")
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = cfg.env("OPENAI_BASE_URL")
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:      apiKey,
			OrgID:       orgID,
			BaseURL:     baseURL,
			Model:       MapModelName(AuthOpenAI, model),
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})

	case AuthOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = cfg.env("OLLAMA_HOST")
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaGenerator(OllamaConfig{
			BaseURL:     baseURL,
			Model:       MapModelName(AuthOllama, model),
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})

	default:
		return nil, configErr("auth_type", "unsupported auth type: "+string(cfg.AuthType))
	}
}
