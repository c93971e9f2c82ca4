package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genport/internal/logging"

	"google.golang.org/genai"
)

// OpenAIConfig holds configuration for OpenAI-compatible chat completion
// APIs.
type OpenAIConfig struct {
	APIKey            string
	OrgID             string // Optional OpenAI-Organization header value
	BaseURL           string // Default: "https://api.openai.com/v1"
	Model             string
	EmbeddingModel    string // Default: "text-embedding-3-small"
	Temperature       float32
	MaxTokens         int32
	HTTPTimeout       time.Duration
	SystemInstruction string
}

// OpenAIGenerator implements ContentGenerator over the chat-completions
// protocol. It speaks raw HTTP and SSE; the protocol is simple enough that
// an SDK buys nothing but a dependency on one vendor's fork of it.
type OpenAIGenerator struct {
	config     OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIGenerator creates a generator. Configuration problems are fatal.
func NewOpenAIGenerator(config OpenAIConfig) (*OpenAIGenerator, error) {
	if config.APIKey == "" {
		return nil, configErr("api_key", "is required")
	}
	if config.Model == "" {
		return nil, configErr("model", "is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if !strings.HasPrefix(config.BaseURL, "http://") && !strings.HasPrefix(config.BaseURL, "https://") {
		return nil, configErr("base_url", "must start with http:// or https://")
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-3-small"
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}

	return &OpenAIGenerator{
		config:     config,
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
	}, nil
}

// Wire types for responses.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
}

type chatChoice struct {
	Index        int             `json:"index"`
	Message      chatRespMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type chatRespMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls"`
}

type chatUsage struct {
	PromptTokens     int32 `json:"prompt_tokens"`
	CompletionTokens int32 `json:"completion_tokens"`
	TotalTokens      int32 `json:"total_tokens"`
}

type streamFrame struct {
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage"`
}

type streamChoice struct {
	Index        int          `json:"index"`
	Delta        deltaMessage `json:"delta"`
	FinishReason string       `json:"finish_reason"`
}

type deltaMessage struct {
	Content   string          `json:"content"`
	ToolCalls []deltaToolCall `json:"tool_calls"`
}

type deltaToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Function functionCall `json:"function"`
}

func (g *OpenAIGenerator) buildRequestBody(req GenerateRequest, stream bool) map[string]any {
	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	body := map[string]any{
		"model":    model,
		"messages": ToChatMessages(req.Contents, g.systemInstruction(req)),
		"stream":   stream,
	}
	if g.config.MaxTokens > 0 {
		body["max_tokens"] = g.config.MaxTokens
	}
	if g.config.Temperature > 0 {
		body["temperature"] = g.config.Temperature
	}
	if len(req.Tools) > 0 {
		if tools := ToChatTools(req.Tools); len(tools) > 0 {
			body["tools"] = tools
		}
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			body["temperature"] = *req.Config.Temperature
		}
		if req.Config.MaxOutputTokens > 0 {
			body["max_tokens"] = req.Config.MaxOutputTokens
		}
		if req.Config.TopP != nil {
			body["top_p"] = *req.Config.TopP
		}
	}
	if stream {
		body["stream_options"] = map[string]any{"include_usage": true}
	}
	return body
}

func (g *OpenAIGenerator) systemInstruction(req GenerateRequest) string {
	if req.Config != nil && req.Config.SystemInstruction != nil {
		var b strings.Builder
		for _, part := range req.Config.SystemInstruction.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return g.config.SystemInstruction
}

// post issues a JSON request and returns the raw response. Non-2xx statuses
// surface as HTTPError with the body attached.
func (g *OpenAIGenerator) post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := g.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	if g.config.OrgID != "" {
		req.Header.Set("OpenAI-Organization", g.config.OrgID)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if rerr != nil {
			respBody = []byte("(failed to read response body)")
		}
		logging.Warn("openai API error", "status", resp.StatusCode, "path", path)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return resp, nil
}

// GenerateContent performs a blocking chat completion.
func (g *OpenAIGenerator) GenerateContent(ctx context.Context, req GenerateRequest) (*genai.GenerateContentResponse, error) {
	resp, err := g.post(ctx, "/chat/completions", g.buildRequestBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	choice := parsed.Choices[0]
	out := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      FromChatMessage(choice.Message.Role, choice.Message.Content, choice.Message.ToolCalls),
			FinishReason: mapFinishReason(choice.FinishReason),
		}},
	}
	if parsed.Usage != nil {
		out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     parsed.Usage.PromptTokens,
			CandidatesTokenCount: parsed.Usage.CompletionTokens,
			TotalTokenCount:      parsed.Usage.TotalTokens,
		}
	}
	return out, nil
}

// GenerateContentStream performs a streaming chat completion. Text deltas
// are forwarded as they arrive; tool-call fragments accumulate and each
// call is delivered once, on the chunk where its arguments first parse.
func (g *OpenAIGenerator) GenerateContentStream(ctx context.Context, req GenerateRequest) (*Stream, error) {
	resp, err := g.post(ctx, "/chat/completions", g.buildRequestBody(req, true))
	if err != nil {
		return nil, err
	}

	stream, chunks, complete := newStream(10)

	go func() {
		defer complete()
		defer resp.Body.Close()

		// Text is forwarded per frame, so the accumulator only carries
		// tool calls, the finish reason, and usage.
		acc := NewStreamAccumulator()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		emitFinal := func() {
			if acc.Empty() {
				return
			}
			select {
			case chunks <- Chunk{Response: acc.Response()}:
			case <-ctx.Done():
			}
		}

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				select {
				case chunks <- Chunk{Err: ctx.Err()}:
				default:
				}
				return
			default:
			}

			line := scanner.Text()
			var data string
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			} else if strings.HasPrefix(line, "data:") {
				data = strings.TrimPrefix(line, "data:")
			} else {
				continue
			}

			if data == "[DONE]" {
				emitFinal()
				return
			}

			var frame streamFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				// A torn frame is dropped, not fatal; the rest of the
				// stream is usually fine.
				logging.Warn("skipping unparseable stream frame", "error", err, "data", truncate(data, 200))
				continue
			}

			if frame.Usage != nil {
				acc.SetUsage(frame.Usage.PromptTokens, frame.Usage.CompletionTokens, frame.Usage.TotalTokens)
			}
			if len(frame.Choices) == 0 {
				continue
			}
			choice := frame.Choices[0]

			if choice.Delta.Content != "" {
				out := &genai.GenerateContentResponse{
					Candidates: []*genai.Candidate{{
						Content: &genai.Content{
							Role:  genai.RoleModel,
							Parts: []*genai.Part{{Text: choice.Delta.Content}},
						},
					}},
				}
				select {
				case chunks <- Chunk{Response: out}:
				case <-ctx.Done():
					return
				}
			}
			if len(choice.Delta.ToolCalls) > 0 {
				for _, tc := range choice.Delta.ToolCalls {
					acc.AddToolCallDelta(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
				}
				if parts := acc.TakeCompleted(); len(parts) > 0 {
					out := &genai.GenerateContentResponse{
						Candidates: []*genai.Candidate{{
							Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
						}},
					}
					select {
					case chunks <- Chunk{Response: out}:
					case <-ctx.Done():
						return
					}
				}
			}
			if choice.FinishReason != "" {
				acc.SetFinishReason(choice.FinishReason)
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case chunks <- Chunk{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		// Stream ended without [DONE]; flush what we have.
		emitFinal()
	}()

	return stream, nil
}

// CountTokens estimates tokens as total characters over four. There is no
// counting endpoint on this protocol.
func (g *OpenAIGenerator) CountTokens(ctx context.Context, req GenerateRequest) (*genai.CountTokensResponse, error) {
	totalChars := 0
	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				totalChars += len(part.Text)
			}
			if part.FunctionCall != nil {
				totalChars += len(part.FunctionCall.Name)
				if argsJSON, err := json.Marshal(part.FunctionCall.Args); err == nil {
					totalChars += len(argsJSON)
				}
			}
			if part.FunctionResponse != nil {
				totalChars += len(part.FunctionResponse.Name)
				if respJSON, err := json.Marshal(part.FunctionResponse.Response); err == nil {
					totalChars += len(respJSON)
				}
			}
			if part.InlineData != nil {
				totalChars += len(part.InlineData.Data)
			}
		}
	}

	estimated := int32((totalChars + 3) / 4)
	return &genai.CountTokensResponse{TotalTokens: estimated}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedContent computes embeddings through the /embeddings endpoint. Each
// content contributes one input built from its concatenated text parts.
func (g *OpenAIGenerator) EmbedContent(ctx context.Context, req GenerateRequest) (*genai.EmbedContentResponse, error) {
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
	resp, err := g.post(ctx, "/embeddings", embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}

	out := &genai.EmbedContentResponse{}
	for _, d := range parsed.Data {
		out.Embeddings = append(out.Embeddings, &genai.ContentEmbedding{Values: d.Embedding})
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
