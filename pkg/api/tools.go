package api

import (
	"context"

	"shopmate/pkg/llm"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NoDataMessage is the error payload used when a tool produced nothing.
const NoDataMessage = "Function returned no data."

// Tool defines the structural interface for any capability that the AI Agent
// can execute. It includes metadata for prompt injection (JSON Schema)
// and the execution logic itself.
type Tool interface {
	llm.Tool
	// Execute performs the tool logic using the validated argument map.
	// Remote failures are reported through ToolResult.Error, not err.
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// ToolResult is either a success payload or an error payload.
type ToolResult struct {
	// Data is the operation-specific success payload.
	Data any
	// Error, when set, makes this an error payload.
	Error string
	// Details are extra keys serialized next to "error" (e.g. the id that failed).
	Details map[string]any
}

// Success wraps a payload.
func Success(data any) *ToolResult {
	return &ToolResult{Data: data}
}

// Failure builds an error payload.
func Failure(msg string, details map[string]any) *ToolResult {
	return &ToolResult{Error: msg, Details: details}
}

// IsError reports whether this is an error payload. A nil result counts as one.
func (r *ToolResult) IsError() bool {
	return r == nil || r.Error != "" || r.Data == nil
}

// ErrorMessage returns the error text, including the no-data sentinel.
func (r *ToolResult) ErrorMessage() string {
	if r == nil || (r.Error == "" && r.Data == nil) {
		return NoDataMessage
	}
	return r.Error
}

// MarshalJSON emits the success payload as-is, or {"error": ...} plus details.
func (r *ToolResult) MarshalJSON() ([]byte, error) {
	if !r.IsError() {
		return json.Marshal(r.Data)
	}
	out := make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		out[k] = v
	}
	out["error"] = r.ErrorMessage()
	return json.Marshal(out)
}

// Payload serializes the result for a tool transcript turn.
func (r *ToolResult) Payload() string {
	if r == nil {
		r = &ToolResult{}
	}
	b, err := r.MarshalJSON()
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return string(b)
}

// ToolRegistry defines the interface for managing and accessing tools.
type ToolRegistry interface {
	Register(tool Tool)
	Unregister(name string)
	Get(name string) (Tool, bool)
	// Resolve is Get for dispatch: an unknown name is an unknown-operation
	// error.
	Resolve(name string) (Tool, error)
	GetAll() []Tool
	// Specs is the read-only catalog handed to the model.
	Specs() []llm.ToolSpec
}
