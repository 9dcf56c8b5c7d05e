package ollama

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"shopmate/pkg/errs"
	"shopmate/pkg/llm"
	"shopmate/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OllamaClient Ollama API client
type OllamaClient struct {
	client   *api.Client
	model    string
	options  map[string]any
	recorder *llm.ExchangeRecorder
}

// SetDebug toggles request/response dumps.
func (o *OllamaClient) SetDebug(enabled bool) {
	o.recorder.SetEnabled(enabled)
}

// NewOllamaClient creates an Ollama client. timeout bounds a whole request;
// zero means no client-side limit.
func NewOllamaClient(model string, baseURL string, options map[string]any, timeout time.Duration) (*OllamaClient, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	customClient := &http.Client{
		Transport: &JSONFixingRoundTripper{Proxied: transport},
		Timeout:   timeout,
	}

	var client *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		client = api.NewClient(u, customClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)

	return &OllamaClient{
		client:   client,
		model:    model,
		options:  options,
		recorder: llm.NewExchangeRecorder("ollama", false),
	}, nil
}

func (o *OllamaClient) Provider() string {
	return "ollama"
}

// Complete implements llm.LLMClient with a single non-streamed chat call.
func (o *OllamaClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Message, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    o.model,
		Messages: o.convertMessages(req.Messages),
		Options:  o.options,
		Tools:    convertTools(req.Tools),
		Stream:   &stream,
	}
	chatReq.Format = responseFormat(req)

	var final *api.ChatResponse
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		final = &resp
		return nil
	})
	o.recorder.Record(ctx, chatReq, final, err)
	if err != nil {
		slog.ErrorContext(ctx, "Chat error", "provider", "ollama", "model", o.model, "error", err)
		return llm.Message{}, errs.Wrap(err, errs.CodeProviderUnavailable, "ollama chat failed")
	}
	if final == nil {
		return llm.Message{}, errs.New(errs.CodeProviderUnavailable, "ollama returned no response")
	}

	msg := llm.NewAssistantMessage(final.Message.Content)
	for _, tc := range final.Message.ToolCalls {
		argsB, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			slog.WarnContext(ctx, "Failed to marshal tool call arguments", "provider", "ollama", "error", err)
			argsB = []byte("{}")
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
				Arguments: string(argsB),
			},
		})
		slog.DebugContext(ctx, "Tool call", "provider", "ollama", "name", tc.Function.Name, "args", string(argsB))
	}

	stop := final.DoneReason
	if len(msg.ToolCalls) > 0 {
		stop = llm.StopReasonToolCall
	} else if stop == llm.StopReasonLength {
		slog.WarnContext(ctx, "Response truncated due to length", "provider", "ollama")
	}
	msg.Usage = &llm.LLMUsage{
		PromptTokens:     final.PromptEvalCount,
		CompletionTokens: final.EvalCount,
		TotalTokens:      final.PromptEvalCount + final.EvalCount,
		StopReason:       stop,
	}
	llm.LogUsage(ctx, "ollama", o.model, msg.Usage)

	return msg, nil
}

// responseFormat returns the answer schema for Ollama's Format field. Ollama
// constrains the whole reply to that grammar, which leaves no room for a tool
// call, so the schema is only sent on requests without tools.
func responseFormat(req llm.CompletionRequest) []byte {
	if len(req.Tools) > 0 || req.ResponseFormat == nil || req.ResponseFormat.Schema == nil {
		return nil
	}
	format, err := json.Marshal(req.ResponseFormat.Schema.ToMap())
	if err != nil {
		return nil
	}
	return format
}

// convertTools goes through JSON because the SDK tool types are awkward to
// build by hand.
func convertTools(specs []llm.ToolSpec) []api.Tool {
	if len(specs) == 0 {
		return nil
	}
	raw := make([]map[string]any, 0, len(specs))
	for _, spec := range specs {
		raw = append(raw, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        spec.Name,
				"description": spec.Description,
				"parameters":  spec.Parameters.ToMap(),
			},
		})
	}

	var tools []api.Tool
	rawB, err := json.Marshal(raw)
	if err != nil {
		slog.Error("Failed to marshal tools", "provider", "ollama", "error", err)
		return nil
	}
	if err := json.Unmarshal(rawB, &tools); err != nil {
		slog.Error("Failed to unmarshal to api.Tool", "provider", "ollama", "error", err)
		return nil
	}
	return tools
}

// convertMessages converts messages to Ollama API format
func (o *OllamaClient) convertMessages(messages []llm.Message) []api.Message {
	ollamaMsgs := make([]api.Message, 0, len(messages))

	for _, m := range messages {
		msg := api.Message{
			Role:    m.Role,
			Content: m.GetTextContent(),
		}

		if m.Role == llm.RoleAssistant && len(m.ToolCalls) > 0 {
			var ollamaToolCalls []api.ToolCall
			for _, tc := range m.ToolCalls {
				args := tc.Function.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				// api.ToolCallFunctionArguments unmarshals from a JSON object.
				var apiArgs api.ToolCallFunctionArguments
				if err := json.Unmarshal([]byte(args), &apiArgs); err != nil {
					slog.Warn("Failed to unmarshal to api.ToolCallFunctionArguments", "provider", "ollama", "error", err)
				}

				ollamaToolCalls = append(ollamaToolCalls, api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: apiArgs,
					},
				})
			}
			msg.ToolCalls = ollamaToolCalls
		}

		if m.Role == llm.RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.ToolName = m.ToolName
		}

		ollamaMsgs = append(ollamaMsgs, msg)
	}

	return ollamaMsgs
}

// IsTransientError implements the llm.LLMClient interface
func (o *OllamaClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "connection reset") {
		return true
	}

	return strings.Contains(errMsg, "overloaded")
}

//----------------------------------------------------------------
// JSONFixingRoundTripper - Interceptor that fixes illegal JSON escapes
//----------------------------------------------------------------

// JSONFixingRoundTripper intercepts response and fixes illegal escapes (e.g., \$)
type JSONFixingRoundTripper struct {
	Proxied http.RoundTripper
}

func (j *JSONFixingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := j.Proxied.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	// Only filter text-type responses (mainly stream JSON)
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(resp.Header.Get("Content-Type"), "application/x-ndjson") {
		resp.Body = &jsonFixingReadCloser{body: resp.Body}
	}
	return resp, nil
}

type jsonFixingReadCloser struct {
	body io.ReadCloser
}

var illegalEscapeRegex = regexp.MustCompile(`\\([^\/\\bfnrtu"])`)

func (j *jsonFixingReadCloser) Read(p []byte) (n int, err error) {
	n, err = j.body.Read(p)
	if n > 0 {
		// Preprocess illegal escapes in the buffer
		// e.g., convert \$ to $ to avoid JSON parsing failures
		content := string(p[:n])
		fixed := illegalEscapeRegex.ReplaceAllString(content, "$1")
		if len(fixed) < len(content) {
			// If length decreases, adjust reported n and fill remaining space
			// Since we only replace single characters (removing backslash), this is safe at the byte array level
			copy(p, []byte(fixed))
			n = len(fixed)
		}
	}
	return n, err
}

func (j *jsonFixingReadCloser) Close() error {
	return j.body.Close()
}
