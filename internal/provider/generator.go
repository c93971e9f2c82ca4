// Package provider implements a uniform content-generation contract over
// three backends: the Gemini SDK, OpenAI-compatible chat completion APIs,
// and a local Ollama server. The canonical request/response shapes are the
// genai SDK types; each backend converts at its own wire boundary.
package provider

import (
	"context"

	"google.golang.org/genai"
)

// GenerateRequest is a provider-independent generation request.
type GenerateRequest struct {
	Model    string
	Contents []*genai.Content
	Tools    []*genai.Tool
	Config   *genai.GenerateContentConfig
}

// ContentGenerator is the contract every provider implements.
type ContentGenerator interface {
	// GenerateContent performs a blocking generation call.
	GenerateContent(ctx context.Context, req GenerateRequest) (*genai.GenerateContentResponse, error)

	// GenerateContentStream starts a streaming generation. The returned
	// stream's Chunks channel is closed when the response completes.
	GenerateContentStream(ctx context.Context, req GenerateRequest) (*Stream, error)

	// CountTokens counts (or estimates) tokens for the given contents.
	CountTokens(ctx context.Context, req GenerateRequest) (*genai.CountTokensResponse, error)

	// EmbedContent computes embeddings for the given contents.
	EmbedContent(ctx context.Context, req GenerateRequest) (*genai.EmbedContentResponse, error)
}

// Chunk is a single streamed item. Exactly one of Response or Err is set;
// a chunk with Err set is always the last one delivered.
type Chunk struct {
	Response *genai.GenerateContentResponse
	Err      error
}

// Stream is a channel-based streaming response.
type Stream struct {
	// Chunks receives response chunks. Closed on completion.
	Chunks <-chan Chunk

	// Done is closed when the producing goroutine exits.
	Done <-chan struct{}
}

// newStream creates a stream and its producer-side channels.
func newStream(buffer int) (*Stream, chan<- Chunk, func()) {
	chunks := make(chan Chunk, buffer)
	done := make(chan struct{})
	complete := func() {
		close(chunks)
		close(done)
	}
	return &Stream{Chunks: chunks, Done: done}, chunks, complete
}

// Collect drains the stream and merges all chunks into one response.
// Returns the first error encountered.
func (s *Stream) Collect() (*genai.GenerateContentResponse, error) {
	merged := &genai.GenerateContentResponse{}
	var parts []*genai.Part

	for chunk := range s.Chunks {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		resp := chunk.Response
		if resp == nil || len(resp.Candidates) == 0 {
			continue
		}
		cand := resp.Candidates[0]
		if cand.Content != nil {
			parts = append(parts, cand.Content.Parts...)
		}
		if cand.FinishReason != "" {
			merged.Candidates = ensureCandidate(merged)
			merged.Candidates[0].FinishReason = cand.FinishReason
		}
		// Usage typically arrives on the final chunk.
		if resp.UsageMetadata != nil {
			merged.UsageMetadata = resp.UsageMetadata
		}
	}

	if len(parts) > 0 {
		merged.Candidates = ensureCandidate(merged)
		merged.Candidates[0].Content = &genai.Content{
			Role:  genai.RoleModel,
			Parts: coalesceText(parts),
		}
	}
	return merged, nil
}

func ensureCandidate(resp *genai.GenerateContentResponse) []*genai.Candidate {
	if len(resp.Candidates) == 0 {
		return []*genai.Candidate{{}}
	}
	return resp.Candidates
}

// coalesceText merges runs of adjacent text parts so collected responses
// carry one text part instead of one per chunk.
func coalesceText(parts []*genai.Part) []*genai.Part {
	var out []*genai.Part
	for _, p := range parts {
		if p == nil {
			continue
		}
		if p.Text != "" && p.FunctionCall == nil && len(out) > 0 {
			last := out[len(out)-1]
			if last.Text != "" && last.FunctionCall == nil {
				last.Text += p.Text
				continue
			}
		}
		cp := *p
		out = append(out, &cp)
	}
	return out
}
