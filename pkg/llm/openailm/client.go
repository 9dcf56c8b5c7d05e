package openailm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopmate/pkg/errs"
	"shopmate/pkg/llm"
	"shopmate/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is a wrapper around the official OpenAI Go SDK using the chat
// completions endpoint.
type Client struct {
	client   *openai.Client
	provider string
	model    string
	options  map[string]any
	recorder *llm.ExchangeRecorder
}

// NewClient creates a new OpenAI client. httpClient may be nil.
func NewClient(provider, apiKey, model, baseURL string, options map[string]any, httpClient *http.Client) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by llm.FallbackClient.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:   &client,
		provider: provider,
		model:    model,
		options:  options,
		recorder: llm.NewExchangeRecorder(provider, false),
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

// SetDebug toggles request/response dumps.
func (c *Client) SetDebug(enabled bool) {
	c.recorder.SetEnabled(enabled)
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "overloaded")
}

// Complete implements llm.LLMClient.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: c.convertMessages(req.Messages),
	}

	if tools := c.convertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	if rf := req.ResponseFormat; rf != nil {
		schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   rf.Name,
			Schema: rf.Schema.ToMap(),
		}
		if rf.Description != "" {
			schema.Description = openai.String(rf.Description)
		}
		if rf.Strict {
			schema.Strict = openai.Bool(true)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}
	}

	if t, ok := c.options["temperature"].(float64); ok {
		params.Temperature = openai.Float(t)
	}
	if p, ok := c.options["top_p"].(float64); ok {
		params.TopP = openai.Float(p)
	}
	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		params.MaxCompletionTokens = openai.Int(int64(maxTok))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	c.recorder.Record(ctx, params, completion, err)
	if err != nil {
		return llm.Message{}, errs.Wrap(err, errs.CodeProviderUnavailable, "%s chat completion failed", c.provider)
	}
	if len(completion.Choices) == 0 {
		return llm.Message{}, errs.New(errs.CodeProviderUnavailable, "%s returned no choices", c.provider)
	}

	choice := completion.Choices[0]
	msg := llm.NewAssistantMessage(choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		id := tc.ID
		if id == "" {
			id = "call_" + utils.GenerateID()
		}
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:   id,
			Name: tc.Function.Name,
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	msg.Usage = &llm.LLMUsage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		CachedTokens:     int(completion.Usage.PromptTokensDetails.CachedTokens),
		StopReason:       normalizeStopReason(string(choice.FinishReason)),
	}
	llm.LogUsage(ctx, c.provider, c.model, msg.Usage)

	return msg, nil
}

func (c *Client) convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, m := range messages {
		text := m.GetTextContent()
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(text))
		case llm.RoleUser:
			out = append(out, openai.UserMessage(text))
		case llm.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case llm.RoleTool:
			out = append(out, openai.ToolMessage(text, m.ToolCallID))
		}
	}

	return out
}

func (c *Client) convertTools(specs []llm.ToolSpec) []openai.ChatCompletionToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
			Parameters:  shared.FunctionParameters(spec.Parameters.ToMap()),
		}))
	}
	return tools
}

// normalizeStopReason maps OpenAI finish_reason values onto llm.StopReason*.
func normalizeStopReason(reason string) string {
	switch strings.ToLower(reason) {
	case "stop", "":
		return llm.StopReasonStop
	case "length":
		return llm.StopReasonLength
	case "tool_calls", "function_call":
		return llm.StopReasonToolCall
	default:
		return reason
	}
}
