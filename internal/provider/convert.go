package provider

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
)

// OpenAI chat-completions wire types. Content is string or []contentPart
// depending on whether the message carries anything beyond plain text.
type chatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

var dataURLPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.*)$`)

// mapRole translates canonical roles to chat-completions roles. Anything
// that is not the model is presented as the user.
func mapRole(role string) string {
	switch role {
	case genai.RoleModel:
		return "assistant"
	case genai.RoleUser:
		return "user"
	default:
		return "user"
	}
}

// synthesizeCallID mints a tool-call id for providers that require one when
// the canonical part carries none.
func synthesizeCallID() string {
	return fmt.Sprintf("call_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// ToChatMessages converts canonical contents to chat-completions messages.
//
// Function responses become role "tool" messages whose tool_call_id is
// resolved by looking back for the most recent assistant tool call with the
// same function name. Matching by name means two outstanding calls to the
// same function correlate to the later one; providers that mint per-call
// ids are unaffected because those ids round-trip through the parts.
func ToChatMessages(contents []*genai.Content, systemInstruction string) []chatMessage {
	var messages []chatMessage
	if systemInstruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemInstruction})
	}

	// name -> most recent tool_call id emitted by an assistant message
	callIDByName := map[string]string{}

	for _, content := range contents {
		if content == nil {
			continue
		}
		role := mapRole(content.Role)

		var textParts []contentPart
		var calls []toolCall
		var toolMsgs []chatMessage

		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.Text != "":
				textParts = append(textParts, contentPart{Type: "text", Text: part.Text})

			case part.InlineData != nil:
				url := fmt.Sprintf("data:%s;base64,%s",
					part.InlineData.MIMEType,
					base64.StdEncoding.EncodeToString(part.InlineData.Data))
				textParts = append(textParts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})

			case part.FunctionCall != nil:
				if role == "assistant" {
					id := part.FunctionCall.ID
					if id == "" {
						id = synthesizeCallID()
					}
					args, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						args = []byte("{}")
					}
					calls = append(calls, toolCall{
						ID:   id,
						Type: "function",
						Function: functionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(args),
						},
					})
					callIDByName[part.FunctionCall.Name] = id
				} else {
					// Function calls outside an assistant turn have no
					// tool_calls slot; render them as text.
					args, _ := json.Marshal(part.FunctionCall.Args)
					textParts = append(textParts, contentPart{
						Type: "text",
						Text: fmt.Sprintf("[Function Call: %s(%s)]", part.FunctionCall.Name, string(args)),
					})
				}

			case part.FunctionResponse != nil:
				id := part.FunctionResponse.ID
				if id == "" {
					id = callIDByName[part.FunctionResponse.Name]
				}
				if id == "" {
					id = synthesizeCallID()
				}
				body, err := json.Marshal(part.FunctionResponse.Response)
				if err != nil {
					body = []byte(`{}`)
				}
				toolMsgs = append(toolMsgs, chatMessage{
					Role:       "tool",
					ToolCallID: id,
					Name:       part.FunctionResponse.Name,
					Content:    string(body),
				})
			}
		}

		if len(textParts) > 0 || len(calls) > 0 {
			msg := chatMessage{Role: role, ToolCalls: calls}
			msg.Content = collapseContent(textParts)
			messages = append(messages, msg)
		}
		messages = append(messages, toolMsgs...)
	}

	return messages
}

// collapseContent returns a bare string for the single-text case and the
// part array otherwise. Many OpenAI-compatible servers reject arrays where
// they expect plain strings.
func collapseContent(parts []contentPart) any {
	if len(parts) == 0 {
		return nil
	}
	if len(parts) == 1 && parts[0].Type == "text" {
		return parts[0].Text
	}
	return parts
}

// FromChatMessage converts a completed chat message back to canonical
// content. Data-URL content decodes back to an inline binary part, the
// inverse of the image_url encoding on the request side.
func FromChatMessage(role string, content string, calls []toolCall) *genai.Content {
	var parts []*genai.Part
	if content != "" {
		if mime, data, ok := DecodeDataURL(content); ok {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}})
		} else {
			parts = append(parts, &genai.Part{Text: content})
		}
	}
	for _, tc := range calls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	r := genai.RoleModel
	if role == "user" {
		r = genai.RoleUser
	}
	return &genai.Content{Role: r, Parts: parts}
}

// DecodeDataURL parses a base64 data URL into mime type and bytes.
func DecodeDataURL(url string) (string, []byte, bool) {
	m := dataURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, false
	}
	return m[1], data, true
}

// ToChatTools converts canonical tool declarations to chat-completions
// function tools.
func ToChatTools(tools []*genai.Tool) []chatTool {
	var out []chatTool
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		for _, decl := range tool.FunctionDeclarations {
			out = append(out, chatTool{
				Type: "function",
				Function: functionSpec{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  schemaToJSON(decl.Parameters),
				},
			})
		}
	}
	return out
}

// schemaToJSON converts a genai.Schema to plain JSON Schema. genai uses
// uppercase type names ("STRING", "OBJECT"); everything downstream expects
// lowercase.
func schemaToJSON(schema *genai.Schema) map[string]any {
	if schema == nil {
		return nil
	}

	result := make(map[string]any)
	if schema.Type != "" {
		result["type"] = strings.ToLower(string(schema.Type))
	}
	if schema.Description != "" {
		result["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		result["enum"] = schema.Enum
	}
	if len(schema.Properties) > 0 {
		props := make(map[string]any)
		for name, propSchema := range schema.Properties {
			props[name] = schemaToJSON(propSchema)
		}
		result["properties"] = props
	}
	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}
	if schema.Items != nil {
		result["items"] = schemaToJSON(schema.Items)
	}
	return result
}

// ToOllamaMessages converts canonical contents to Ollama chat messages.
// Inline binary has no slot in the Ollama chat schema beyond images, so
// image payloads ride along and other binary parts are dropped.
func ToOllamaMessages(contents []*genai.Content, systemInstruction string) []api.Message {
	messages := make([]api.Message, 0, len(contents)+1)
	if systemInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemInstruction})
	}

	for _, content := range contents {
		if content == nil {
			continue
		}
		msg := api.Message{Role: mapRole(content.Role)}

		var textParts []string
		var toolMsgs []api.Message

		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.Text != "":
				textParts = append(textParts, part.Text)

			case part.InlineData != nil:
				if strings.HasPrefix(part.InlineData.MIMEType, "image/") {
					msg.Images = append(msg.Images, api.ImageData(part.InlineData.Data))
				}

			case part.FunctionCall != nil:
				var args api.ToolCallFunctionArguments
				if raw, err := json.Marshal(part.FunctionCall.Args); err == nil {
					_ = json.Unmarshal(raw, &args)
				}
				msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      part.FunctionCall.Name,
						Arguments: args,
					},
				})

			case part.FunctionResponse != nil:
				body, err := json.Marshal(part.FunctionResponse.Response)
				if err != nil {
					body = []byte(`{}`)
				}
				toolMsgs = append(toolMsgs, api.Message{
					Role:     "tool",
					Content:  string(body),
					ToolName: part.FunctionResponse.Name,
				})
			}
		}

		msg.Content = strings.Join(textParts, "\n")
		if msg.Content != "" || len(msg.ToolCalls) > 0 || len(msg.Images) > 0 {
			messages = append(messages, msg)
		}
		messages = append(messages, toolMsgs...)
	}

	return messages
}

// FromOllamaMessage converts an Ollama response message to canonical
// content. Tool-call ids are synthesized; Ollama does not mint them.
func FromOllamaMessage(msg api.Message) *genai.Content {
	var parts []*genai.Part
	if msg.Content != "" {
		parts = append(parts, &genai.Part{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if raw, err := json.Marshal(tc.Function.Arguments); err == nil {
			_ = json.Unmarshal(raw, &args)
		}
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   synthesizeCallID(),
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}
	return &genai.Content{Role: genai.RoleModel, Parts: parts}
}

// ToOllamaTools converts canonical tool declarations to the Ollama tool
// schema.
func ToOllamaTools(tools []*genai.Tool) api.Tools {
	var out api.Tools
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		for _, decl := range tool.FunctionDeclarations {
			fn := api.ToolFunction{
				Name:        decl.Name,
				Description: decl.Description,
			}
			if params := schemaToJSON(decl.Parameters); params != nil {
				if raw, err := json.Marshal(params); err == nil {
					_ = json.Unmarshal(raw, &fn.Parameters)
				}
			}
			out = append(out, api.Tool{Type: "function", Function: fn})
		}
	}
	return out
}
