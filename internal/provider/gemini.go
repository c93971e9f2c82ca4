package provider

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the native Gemini backend.
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string // Default: "gemini-embedding-001"
	HTTPTimeout    time.Duration
}

// GeminiGenerator implements ContentGenerator over the official SDK. The
// canonical types are the SDK's own, so this backend is a thin passthrough.
type GeminiGenerator struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, config GeminiConfig) (*GeminiGenerator, error) {
	if config.APIKey == "" {
		return nil, configErr("api_key", "is required")
	}
	if config.Model == "" {
		return nil, configErr("model", "is required")
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: client, config: config}, nil
}

func (g *GeminiGenerator) model(req GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return g.config.Model
}

func (g *GeminiGenerator) generateConfig(req GenerateRequest) *genai.GenerateContentConfig {
	cfg := req.Config
	if len(req.Tools) > 0 {
		if cfg == nil {
			cfg = &genai.GenerateContentConfig{}
		} else {
			copied := *cfg
			cfg = &copied
		}
		cfg.Tools = req.Tools
	}
	return cfg
}

// GenerateContent performs a blocking generation call.
func (g *GeminiGenerator) GenerateContent(ctx context.Context, req GenerateRequest) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, g.model(req), req.Contents, g.generateConfig(req))
}

// GenerateContentStream pumps the SDK iterator into a channel stream.
func (g *GeminiGenerator) GenerateContentStream(ctx context.Context, req GenerateRequest) (*Stream, error) {
	iter := g.client.Models.GenerateContentStream(ctx, g.model(req), req.Contents, g.generateConfig(req))

	stream, chunks, complete := newStream(10)
	go func() {
		defer complete()
		for resp, err := range iter {
			if err != nil {
				select {
				case chunks <- Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case chunks <- Chunk{Response: resp}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return stream, nil
}

// CountTokens calls the native counting endpoint.
func (g *GeminiGenerator) CountTokens(ctx context.Context, req GenerateRequest) (*genai.CountTokensResponse, error) {
	return g.client.Models.CountTokens(ctx, g.model(req), req.Contents, nil)
}

// EmbedContent calls the native embedding endpoint.
func (g *GeminiGenerator) EmbedContent(ctx context.Context, req GenerateRequest) (*genai.EmbedContentResponse, error) {
	model := req.Model
	if model == "" {
		model = g.config.EmbeddingModel
	}
	return g.client.Models.EmbedContent(ctx, model, req.Contents, nil)
}
