package llm

import (
	"strings"
	"time"

	"shopmate/pkg/utils"
)

//----------------------------------------------------------------
// Message - one turn of the transcript
//----------------------------------------------------------------

// Message is a single transcript turn. Messages are treated as immutable
// once appended to a ChatHistory.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"`    // "system", "user", "assistant", "tool"
	Content   []ContentBlock `json:"content"` // Ordered content blocks
	Timestamp int64          `json:"timestamp,omitempty"`

	// ToolCalls holds the model's tool invocation requests (assistant only).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName link a tool turn to the request it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// Usage is filled by providers on assistant messages.
	Usage *LLMUsage `json:"usage,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Function FunctionCall `json:"function"`

	// Meta carries provider specific data needed to replay the call
	// (e.g. the original Gemini FunctionCall). Never serialized.
	Meta map[string]any `json:"-"`
}

// FunctionCall carries the tool name and raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ContentBlock is a unit of message content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

//----------------------------------------------------------------
// Helper Functions
//----------------------------------------------------------------

// NewTextMessage builds a single-block text message.
func NewTextMessage(role, text string) Message {
	return Message{
		ID:        utils.GenerateID(),
		Role:      role,
		Content:   []ContentBlock{NewTextBlock(text)},
		Timestamp: time.Now().Unix(),
	}
}

func NewSystemMessage(text string) Message {
	return NewTextMessage(RoleSystem, text)
}

func NewUserMessage(text string) Message {
	return NewTextMessage(RoleUser, text)
}

func NewAssistantMessage(text string) Message {
	return NewTextMessage(RoleAssistant, text)
}

// NewToolMessage builds the tool turn answering call with a serialized payload.
func NewToolMessage(call ToolCall, payload string) Message {
	msg := NewTextMessage(RoleTool, payload)
	msg.ToolCallID = call.ID
	msg.ToolName = call.Name
	return msg
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewErrorBlock creates an error block shown to the user.
func NewErrorBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeError, Text: text}
}

// GetTextContent concatenates all text blocks.
func (m *Message) GetTextContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// HasToolCalls reports whether the model asked for at least one tool.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
