package ollama

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"shopmate/pkg/llm"
)

func TestConvertTools(t *testing.T) {
	tools := convertTools([]llm.ToolSpec{{
		Name:        "remove_product",
		Description: "Remove a product",
		Parameters: &llm.Schema{
			Type:       "object",
			Required:   []string{"product_id"},
			Properties: map[string]*llm.Schema{"product_id": {Type: "integer"}},
		},
	}})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Type != "function" || tools[0].Function.Name != "remove_product" {
		t.Errorf("unexpected tool %+v", tools[0])
	}
	if len(tools[0].Function.Parameters.Required) != 1 {
		t.Errorf("required not carried: %+v", tools[0].Function.Parameters)
	}
}

func TestConvertMessagesLinksToolResults(t *testing.T) {
	o := &OllamaClient{}
	call := llm.ToolCall{ID: "call_2", Name: "add_product", Function: llm.FunctionCall{Name: "add_product", Arguments: `{"title":"Hat"}`}}
	assistant := llm.NewAssistantMessage("")
	assistant.ToolCalls = []llm.ToolCall{call}

	msgs := o.convertMessages([]llm.Message{assistant, llm.NewToolMessage(call, `{"id":1}`)})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].Function.Name != "add_product" {
		t.Errorf("tool call not converted: %+v", msgs[0])
	}
	if msgs[1].Role != "tool" || msgs[1].ToolCallID != "call_2" {
		t.Errorf("tool result not linked: %+v", msgs[1])
	}
}

func TestJSONFixingReadCloser(t *testing.T) {
	r := &jsonFixingReadCloser{body: io.NopCloser(bytes.NewBufferString(`{"content":"costs \$5"}`))}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != `{"content":"costs $5"}` {
		t.Errorf("got %s", out)
	}
}

func TestResponseFormatOnlyWithoutTools(t *testing.T) {
	format := &llm.ResponseFormat{
		Name: "ChatResponse",
		Schema: &llm.Schema{
			Type:       "object",
			Required:   []string{"response"},
			Properties: map[string]*llm.Schema{"response": {Type: "string"}},
		},
	}
	catalog := []llm.ToolSpec{{Name: "list_products", Parameters: &llm.Schema{Type: "object"}}}

	tests := []struct {
		name string
		req  llm.CompletionRequest
		want bool
	}{
		{"no tools", llm.CompletionRequest{ResponseFormat: format}, true},
		{"with tools", llm.CompletionRequest{ResponseFormat: format, Tools: catalog}, false},
		{"no format", llm.CompletionRequest{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := responseFormat(tt.req)
			if (got != nil) != tt.want {
				t.Fatalf("responseFormat = %s, want present=%v", got, tt.want)
			}
			if tt.want && !strings.Contains(string(got), `"response"`) {
				t.Errorf("schema not carried: %s", got)
			}
		})
	}
}
