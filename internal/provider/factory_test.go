package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorUnknownAuthTypeFails(t *testing.T) {
	_, err := NewGenerator(context.Background(), FactoryConfig{AuthType: "mystery"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "unsupported auth type")
}

func TestNewGeneratorOpenAIEnvFallbacks(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":  "env-key",
		"OPENAI_ORG_ID":   "org-env",
		"OPENAI_BASE_URL": "https://proxy.example.com/v1",
	}
	gen, err := NewGenerator(context.Background(), FactoryConfig{
		AuthType: AuthOpenAI,
		Getenv:   func(k string) string { return env[k] },
	})
	require.NoError(t, err)

	og, ok := gen.(*OpenAIGenerator)
	require.True(t, ok)
	assert.Equal(t, "env-key", og.config.APIKey)
	assert.Equal(t, "org-env", og.config.OrgID)
	assert.Equal(t, "https://proxy.example.com/v1", og.config.BaseURL)
	assert.Equal(t, defaultOpenAIModel, og.config.Model)
}

func TestNewGeneratorExplicitConfigBeatsEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY": "from-env",
	}
	gen, err := NewGenerator(context.Background(), FactoryConfig{
		AuthType: AuthOpenAI,
		APIKey:   "explicit",
		Model:    "my-model",
		Getenv:   func(k string) string { return env[k] },
	})
	require.NoError(t, err)

	og := gen.(*OpenAIGenerator)
	assert.Equal(t, "explicit", og.config.APIKey)
	assert.Equal(t, "my-model", og.config.Model)
}

func TestNewGeneratorOpenAIMissingKeyFails(t *testing.T) {
	_, err := NewGenerator(context.Background(), FactoryConfig{
		AuthType: AuthOpenAI,
		Getenv:   func(string) string { return "" },
	})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewGeneratorOllamaDefaults(t *testing.T) {
	gen, err := NewGenerator(context.Background(), FactoryConfig{
		AuthType: AuthOllama,
		Getenv:   func(string) string { return "" },
	})
	require.NoError(t, err)

	og, ok := gen.(*OllamaGenerator)
	require.True(t, ok)
	assert.Equal(t, defaultOllamaModel, og.config.Model)
	assert.Equal(t, "http://localhost:11434", og.config.BaseURL)
}

func TestMapModelNameIdentityFallback(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", MapModelName(AuthOpenAI, "gemini-2.5-flash"))
	assert.Equal(t, "llama3.3", MapModelName(AuthOllama, "gemini-2.5-pro"))
	// Unknown names pass through unchanged.
	assert.Equal(t, "custom-model", MapModelName(AuthOpenAI, "custom-model"))
	assert.Equal(t, "whatever", MapModelName(AuthGeminiAPIKey, "whatever"))
}

func TestGetModelProfile(t *testing.T) {
	p := GetModelProfile("gpt-4o")
	assert.True(t, p.SupportsTools)
	assert.Equal(t, int32(128_000), p.ContextWindow)

	unknown := GetModelProfile("never-heard-of-it")
	assert.Equal(t, defaultProfile, unknown)
}
