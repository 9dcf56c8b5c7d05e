package llm

// Role constants identify the author of a transcript turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// StopReason constants define normalized reasons for generation termination.
// Providers map their native finish reasons onto these values.
const (
	StopReasonStop     = "stop"      // Normal completion
	StopReasonLength   = "length"    // Output truncated due to token limit
	StopReasonToolCall = "tool_call" // Model asked for a tool invocation
)

// ContentBlock type constants.
const (
	BlockTypeText  = "text"
	BlockTypeError = "error"
)
