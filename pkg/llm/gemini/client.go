package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shopmate/pkg/errs"
	"shopmate/pkg/llm"
	"shopmate/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/genai"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client   *genai.Client
	model    string
	options  map[string]any
	recorder *llm.ExchangeRecorder
}

// NewGeminiClient creates a Gemini client with a single model and API key
func NewGeminiClient(ctx context.Context, apiKey, model string, options map[string]any) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiClient{
		client:   client,
		model:    model,
		options:  options,
		recorder: llm.NewExchangeRecorder("gemini", false),
	}, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

// SetDebug toggles request/response dumps.
func (g *GeminiClient) SetDebug(enabled bool) {
	g.recorder.SetEnabled(enabled)
}

// Complete implements llm.LLMClient.
func (g *GeminiClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Message, error) {
	contents, systemInstruction := g.convertMessages(req.Messages)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		cfg.Tools = tools
	} else if req.ResponseFormat != nil {
		// Gemini rejects function calling combined with a JSON mime type,
		// so the schema is only enforced on tool-less requests.
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(req.ResponseFormat.Schema)
	}
	if t, ok := g.options["temperature"].(float64); ok {
		temp := float32(t)
		cfg.Temperature = &temp
	}

	slog.DebugContext(ctx, "Gemini request", "model", g.model, "contents", len(contents), "tools", len(req.Tools))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	g.recorder.Record(ctx, map[string]any{"model": g.model, "contents": contents, "config": cfg}, resp, err)
	if err != nil {
		return llm.Message{}, errs.Wrap(err, errs.CodeProviderUnavailable, "gemini generate content failed")
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.Message{}, errs.New(errs.CodeProviderUnavailable, "gemini returned no candidates")
	}

	msg := llm.NewAssistantMessage("")
	for _, fc := range resp.FunctionCalls() {
		argsB, _ := json.Marshal(fc.Args)
		id := fc.ID
		if id == "" {
			id = "call_" + utils.GenerateID()
		}
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:   id,
			Name: fc.Name,
			Function: llm.FunctionCall{
				Name:      fc.Name,
				Arguments: string(argsB),
			},
			// Keep the original call so it can be echoed verbatim.
			Meta: map[string]any{"gemini_function_call": fc},
		})
	}
	if len(msg.ToolCalls) == 0 {
		msg.Content = []llm.ContentBlock{llm.NewTextBlock(resp.Text())}
	}

	usage := &llm.LLMUsage{StopReason: normalizeStopReason(resp.Candidates[0].FinishReason, len(msg.ToolCalls) > 0)}
	if u := resp.UsageMetadata; u != nil {
		usage.PromptTokens = int(u.PromptTokenCount)
		usage.CompletionTokens = int(u.CandidatesTokenCount)
		usage.TotalTokens = int(u.TotalTokenCount)
		usage.CachedTokens = int(u.CachedContentTokenCount)
	}
	msg.Usage = usage
	llm.LogUsage(ctx, "gemini", g.model, usage)

	return msg, nil
}

// convertMessages converts message list to GenAI format
func (g *GeminiClient) convertMessages(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, msg := range messages {
		text := msg.GetTextContent()

		switch msg.Role {
		case llm.RoleSystem:
			if text != "" {
				systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: text}}}
			}

		case llm.RoleTool:
			// Tool results travel in the user role.
			var payload any
			if err := json.Unmarshal([]byte(text), &payload); err != nil {
				payload = text
			}
			response, ok := payload.(map[string]any)
			if !ok {
				response = map[string]any{"result": payload}
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       msg.ToolCallID,
						Name:     msg.ToolName,
						Response: response,
					},
				}},
			})

		case llm.RoleAssistant:
			var parts []*genai.Part
			for _, tc := range msg.ToolCalls {
				if original, ok := tc.Meta["gemini_function_call"].(*genai.FunctionCall); ok {
					parts = append(parts, &genai.Part{FunctionCall: original})
					continue
				}
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Function.Name, Args: args},
				})
			}
			if text != "" {
				parts = append(parts, &genai.Part{Text: text})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}

		default:
			if text != "" {
				contents = append(contents, &genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: text}},
				})
			}
		}
	}

	return contents, systemInstruction
}

func convertTools(specs []llm.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	fds := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		fds = append(fds, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  toGenaiSchema(spec.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fds}}
}

// toGenaiSchema translates the portable schema. Gemini has no
// additionalProperties, so that flag is dropped.
func toGenaiSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{
		Type:        schemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}
	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

func normalizeStopReason(reason genai.FinishReason, toolCall bool) string {
	if toolCall {
		return llm.StopReasonToolCall
	}
	switch reason {
	case genai.FinishReasonMaxTokens:
		return llm.StopReasonLength
	case genai.FinishReasonStop, "":
		return llm.StopReasonStop
	default:
		return string(reason)
	}
}

// IsTransientError implements the llm.LLMClient interface
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())

	// 503 Service Unavailable / Overloaded
	if strings.Contains(errMsg, "503") || strings.Contains(errMsg, "overloaded") {
		return true
	}

	// 429 Too Many Requests (Rate Limit)
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "resource exhausted") {
		return true
	}

	// 500 Internal Error
	if strings.Contains(errMsg, "500") || strings.Contains(errMsg, "internal error") {
		return true
	}

	return false
}
