package gemini

import (
	"testing"

	"shopmate/pkg/llm"

	"google.golang.org/genai"
)

func TestToGenaiSchema(t *testing.T) {
	s := &llm.Schema{
		Type:     "object",
		Required: []string{"title"},
		Properties: map[string]*llm.Schema{
			"title": {Type: "string", Description: "Product title"},
			"price": {Type: "number"},
			"tags":  {Type: "array", Items: &llm.Schema{Type: "string"}},
		},
		AdditionalProperties: llm.Bool(false),
	}

	got := toGenaiSchema(s)
	if got.Type != genai.TypeObject {
		t.Fatalf("Type = %v, want object", got.Type)
	}
	if len(got.Required) != 1 || got.Required[0] != "title" {
		t.Errorf("Required = %v", got.Required)
	}
	if got.Properties["title"].Type != genai.TypeString || got.Properties["title"].Description != "Product title" {
		t.Errorf("title = %+v", got.Properties["title"])
	}
	if got.Properties["price"].Type != genai.TypeNumber {
		t.Errorf("price = %+v", got.Properties["price"])
	}
	if tags := got.Properties["tags"]; tags.Type != genai.TypeArray || tags.Items == nil || tags.Items.Type != genai.TypeString {
		t.Errorf("tags = %+v", tags)
	}
}

func TestConvertMessagesSplitsSystemAndToolTurns(t *testing.T) {
	g := &GeminiClient{}
	call := llm.ToolCall{ID: "call_1", Name: "list_orders", Function: llm.FunctionCall{Name: "list_orders", Arguments: `{"status":"any"}`}}
	assistant := llm.NewAssistantMessage("")
	assistant.ToolCalls = []llm.ToolCall{call}

	contents, sys := g.convertMessages([]llm.Message{
		llm.NewSystemMessage("be helpful"),
		llm.NewUserMessage("orders?"),
		assistant,
		llm.NewToolMessage(call, `[{"id":1}]`),
	})

	if sys == nil || sys.Parts[0].Text != "be helpful" {
		t.Fatalf("system instruction not extracted: %+v", sys)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" || contents[1].Parts[0].FunctionCall == nil {
		t.Errorf("assistant call not converted: %+v", contents[1])
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "list_orders" {
		t.Fatalf("tool response not converted: %+v", contents[2])
	}
	if _, ok := fr.Response["result"]; !ok {
		t.Errorf("array payload should be wrapped in result: %+v", fr.Response)
	}
}

func TestIsTransientError(t *testing.T) {
	g := &GeminiClient{}
	cases := map[string]bool{
		"Error 503, Service Unavailable": true,
		"429 resource exhausted":         true,
		"invalid argument":               false,
	}
	for msg, want := range cases {
		if got := g.IsTransientError(errString(msg)); got != want {
			t.Errorf("IsTransientError(%q) = %v, want %v", msg, got, want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
