package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"genport/internal/logging"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
)

// OllamaConfig holds configuration for a local or remote Ollama server.
type OllamaConfig struct {
	BaseURL           string // Default: "http://localhost:11434"
	Model             string
	EmbeddingModel    string // Default: the chat model
	Temperature       float32
	MaxTokens         int32
	HTTPTimeout       time.Duration
	SystemInstruction string
}

// OllamaGenerator implements ContentGenerator over the Ollama chat API.
type OllamaGenerator struct {
	client *api.Client
	config OllamaConfig
}

// NewOllamaGenerator creates a generator for an Ollama server.
func NewOllamaGenerator(config OllamaConfig) (*OllamaGenerator, error) {
	if config.Model == "" {
		return nil, configErr("model", "is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = config.Model
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, configErr("base_url", err.Error())
	}
	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	client := api.NewClient(baseURL, &http.Client{Timeout: config.HTTPTimeout})
	return &OllamaGenerator{client: client, config: config}, nil
}

func (g *OllamaGenerator) buildChatRequest(req GenerateRequest, stream bool) *api.ChatRequest {
	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	system := g.config.SystemInstruction
	if req.Config != nil && req.Config.SystemInstruction != nil {
		var b strings.Builder
		for _, part := range req.Config.SystemInstruction.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			system = b.String()
		}
	}

	out := &api.ChatRequest{
		Model:    model,
		Messages: ToOllamaMessages(req.Contents, system),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if g.config.MaxTokens > 0 {
		out.Options["num_predict"] = g.config.MaxTokens
	}
	if g.config.Temperature > 0 {
		out.Options["temperature"] = g.config.Temperature
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			out.Options["temperature"] = *req.Config.Temperature
		}
		if req.Config.MaxOutputTokens > 0 {
			out.Options["num_predict"] = req.Config.MaxOutputTokens
		}
	}
	if len(req.Tools) > 0 {
		out.Tools = ToOllamaTools(req.Tools)
	}
	return out
}

func responseFromOllama(resp api.ChatResponse) *genai.GenerateContentResponse {
	out := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: FromOllamaMessage(resp.Message),
		}},
	}
	if resp.Done {
		out.Candidates[0].FinishReason = genai.FinishReasonStop
		out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.PromptEvalCount),
			CandidatesTokenCount: int32(resp.EvalCount),
			TotalTokenCount:      int32(resp.PromptEvalCount + resp.EvalCount),
		}
	}
	return out
}

// GenerateContent performs a blocking chat call.
func (g *OllamaGenerator) GenerateContent(ctx context.Context, req GenerateRequest) (*genai.GenerateContentResponse, error) {
	var final *genai.GenerateContentResponse
	err := g.client.Chat(ctx, g.buildChatRequest(req, false), func(resp api.ChatResponse) error {
		final = responseFromOllama(resp)
		return nil
	})
	if err != nil {
		return nil, wrapOllamaError(err)
	}
	if final == nil {
		return nil, fmt.Errorf("ollama returned no response")
	}
	return final, nil
}

// GenerateContentStream streams chat responses. Ollama delivers tool calls
// whole per frame, so frames map one-to-one onto chunks.
func (g *OllamaGenerator) GenerateContentStream(ctx context.Context, req GenerateRequest) (*Stream, error) {
	stream, chunks, complete := newStream(10)

	go func() {
		defer complete()

		err := g.client.Chat(ctx, g.buildChatRequest(req, true), func(resp api.ChatResponse) error {
			out := responseFromOllama(resp)
			if out.Candidates[0].Content != nil && len(out.Candidates[0].Content.Parts) == 0 && !resp.Done {
				return nil // empty keepalive frame
			}
			select {
			case chunks <- Chunk{Response: out}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case chunks <- Chunk{Err: wrapOllamaError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return stream, nil
}

// CountTokens estimates tokens as total characters over four; the chat API
// reports real counts only after generation.
func (g *OllamaGenerator) CountTokens(ctx context.Context, req GenerateRequest) (*genai.CountTokensResponse, error) {
	totalChars := 0
	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		for _, part := range content.Parts {
			if part != nil && part.Text != "" {
				totalChars += len(part.Text)
			}
		}
	}
	return &genai.CountTokensResponse{TotalTokens: int32((totalChars + 3) / 4)}, nil
}

// EmbedContent computes embeddings through the Ollama embed endpoint.
func (g *OllamaGenerator) EmbedContent(ctx context.Context, req GenerateRequest) (*genai.EmbedContentResponse, error) {
	inputs := make([]string, 0, len(req.Contents))
	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		inputs = append(inputs, b.String())
	}
	if len(inputs) == 0 {
		return nil, configErr("contents", "nothing to embed")
	}

	model := req.Model
	if model == "" {
		model = g.config.EmbeddingModel
	}
	resp, err := g.client.Embed(ctx, &api.EmbedRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, wrapOllamaError(err)
	}

	out := &genai.EmbedContentResponse{}
	for _, emb := range resp.Embeddings {
		out.Embeddings = append(out.Embeddings, &genai.ContentEmbedding{Values: emb})
	}
	return out, nil
}

// ListModels returns the models installed on the server.
func (g *OllamaGenerator) ListModels(ctx context.Context) ([]string, error) {
	resp, err := g.client.List(ctx)
	if err != nil {
		return nil, wrapOllamaError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Healthcheck verifies the server is reachable.
func (g *OllamaGenerator) Healthcheck(ctx context.Context) error {
	if _, err := g.client.List(ctx); err != nil {
		return wrapOllamaError(err)
	}
	return nil
}

// wrapOllamaError rewrites the common connection failure into something
// actionable.
func wrapOllamaError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("ollama server not reachable (is it running?): %w", err)
	}
	return err
}
