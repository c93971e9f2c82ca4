package provider

import (
	"encoding/json"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// StreamAccumulator folds streaming deltas into a coherent response. Tool
// calls are keyed by their stream index because ids and names arrive only on
// the first fragment while argument JSON trickles in across many.
//
// A tool call whose accumulated argument string does not yet parse as JSON
// is withheld until it does. Callers see complete calls or no calls, never
// torn ones: TakeCompleted hands out each call exactly once, as soon as its
// arguments parse, and Response snapshots whatever has not been taken.
type StreamAccumulator struct {
	text     strings.Builder
	calls    map[int]*pendingCall
	finish   string
	usage    *genai.GenerateContentResponseUsageMetadata
	hasDelta bool
}

type pendingCall struct {
	id      string
	name    string
	args    strings.Builder
	emitted bool
}

// part builds the function-call part, or reports false while the arguments
// are still streaming.
func (c *pendingCall) part() (*genai.Part, bool) {
	if c.name == "" {
		return nil, false
	}
	args := map[string]any{}
	if raw := c.args.String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, false
		}
	}
	return &genai.Part{
		FunctionCall: &genai.FunctionCall{
			ID:   c.id,
			Name: c.name,
			Args: args,
		},
	}, true
}

// NewStreamAccumulator creates an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{calls: map[int]*pendingCall{}}
}

// AddText appends a text delta.
func (a *StreamAccumulator) AddText(text string) {
	if text == "" {
		return
	}
	a.text.WriteString(text)
	a.hasDelta = true
}

// AddToolCallDelta merges a tool-call fragment at the given index. id and
// name are kept from the first fragment that carries them; args fragments
// are concatenated in arrival order.
func (a *StreamAccumulator) AddToolCallDelta(index int, id, name, args string) {
	call, ok := a.calls[index]
	if !ok {
		call = &pendingCall{}
		a.calls[index] = call
	}
	if id != "" && call.id == "" {
		call.id = id
	}
	if name != "" && call.name == "" {
		call.name = name
	}
	call.args.WriteString(args)
	a.hasDelta = true
}

// SetFinishReason records the upstream finish reason string.
func (a *StreamAccumulator) SetFinishReason(reason string) {
	if reason != "" {
		a.finish = reason
		a.hasDelta = true
	}
}

// SetUsage records token usage, typically delivered on the final frame.
func (a *StreamAccumulator) SetUsage(prompt, completion, total int32) {
	a.usage = &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     prompt,
		CandidatesTokenCount: completion,
		TotalTokenCount:      total,
	}
	a.hasDelta = true
}

// Empty reports whether nothing has been accumulated.
func (a *StreamAccumulator) Empty() bool {
	return !a.hasDelta
}

func (a *StreamAccumulator) sortedIndices() []int {
	indices := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// TakeCompleted returns function-call parts for calls whose accumulated
// arguments have become parseable, in index order. Each call is returned
// once; later takes and Response snapshots skip it.
func (a *StreamAccumulator) TakeCompleted() []*genai.Part {
	var parts []*genai.Part
	for _, i := range a.sortedIndices() {
		call := a.calls[i]
		if call.emitted {
			continue
		}
		part, ok := call.part()
		if !ok {
			continue
		}
		call.emitted = true
		parts = append(parts, part)
	}
	return parts
}

// Response builds a response from the accumulated state. Returns nil when
// nothing has been accumulated, so callers emit nothing for empty streams.
func (a *StreamAccumulator) Response() *genai.GenerateContentResponse {
	if !a.hasDelta {
		return nil
	}

	var parts []*genai.Part
	if a.text.Len() > 0 {
		parts = append(parts, &genai.Part{Text: a.text.String()})
	}

	for _, i := range a.sortedIndices() {
		call := a.calls[i]
		if call.emitted {
			continue
		}
		part, ok := call.part()
		if !ok {
			// Arguments still streaming; withhold the call.
			continue
		}
		parts = append(parts, part)
	}

	resp := &genai.GenerateContentResponse{
		UsageMetadata: a.usage,
	}
	cand := &genai.Candidate{
		FinishReason: mapFinishReason(a.finish),
	}
	if len(parts) > 0 {
		cand.Content = &genai.Content{Role: genai.RoleModel, Parts: parts}
	}
	resp.Candidates = []*genai.Candidate{cand}
	return resp
}

// mapFinishReason translates OpenAI-style finish reasons. Tool-call stops
// map to a plain stop: callers detect tool use from the parts, not from the
// finish reason. Absent and unknown reasons both land on Other.
func mapFinishReason(reason string) genai.FinishReason {
	switch reason {
	case "stop":
		return genai.FinishReasonStop
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	case "tool_calls":
		return genai.FinishReasonStop
	default:
		return genai.FinishReasonOther
	}
}
