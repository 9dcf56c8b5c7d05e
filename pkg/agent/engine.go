package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"shopmate/pkg/api"
	"shopmate/pkg/config"
	"shopmate/pkg/errs"
	"shopmate/pkg/llm"
	"shopmate/pkg/tools"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DegradedMessage is returned when the model provider cannot be reached.
const DegradedMessage = "Seems like I have encountered an error! Please check your configuration and .env file!"

const (
	defaultProductTitle = "Unnamed Product"
	iterationLimitReply = "Sorry, I couldn't finish that request. Please try again or rephrase it."
)

// AgentEngine runs the dialogue loop: it queries the model, dispatches the
// tool calls it asks for and shapes the final answer.
// It implements api.Conversation.
type AgentEngine struct {
	client       llm.LLMClient
	sysCfg       atomic.Pointer[config.SystemConfig]
	toolRegistry api.ToolRegistry
	sessions     *llm.SessionManager
}

// NewAgentEngine initializes a new AgentEngine.
func NewAgentEngine(client llm.LLMClient, sysCfg *config.SystemConfig, sessions *llm.SessionManager) *AgentEngine {
	if sysCfg == nil {
		sysCfg = config.DefaultSystemConfig()
	}
	e := &AgentEngine{
		client:   client,
		sessions: sessions,
	}
	e.sysCfg.Store(sysCfg)
	return e
}

// SetSystemConfig swaps the tuning parameters; safe during traffic.
func (e *AgentEngine) SetSystemConfig(cfg *config.SystemConfig) {
	if cfg != nil {
		e.sysCfg.Store(cfg)
	}
}

// SetToolRegistry sets the tool registry used by the engine for tool execution.
func (e *AgentEngine) SetToolRegistry(tr api.ToolRegistry) {
	e.toolRegistry = tr
}

// RegisterTool adds one or more tools to the engine's registry.
// It automatically initializes the registry if it's currently nil.
func (e *AgentEngine) RegisterTool(tl ...api.Tool) {
	if e.toolRegistry == nil {
		e.toolRegistry = tools.NewToolRegistry()
	}
	for _, t := range tl {
		e.toolRegistry.Register(t)
	}
}

// Converse handles one user turn for sessionID. It never fails; every
// failure is folded into the returned response.
func (e *AgentEngine) Converse(ctx context.Context, sessionID, message string, todos []api.TodoItem) api.ChatResponse {
	ctx = llm.WithRequestID(ctx, uuid.NewString())
	if e.toolRegistry == nil {
		e.toolRegistry = tools.NewToolRegistry()
	}

	session := e.sessions.Acquire(sessionID)
	defer session.Unlock()

	resp, err := e.converse(ctx, session, message, todos)
	resp.SessionID = sessionID

	if errs.HasCode(err, errs.CodeIterationLimitExceeded) {
		// The transcript ends on an unanswered tool turn; start over next time.
		resp.Error = err.Error()
		e.sessions.Drop(sessionID)
	}
	return resp
}

// converse returns an error only when the session itself failed.
func (e *AgentEngine) converse(ctx context.Context, session *llm.Session, message string, todos []api.TodoItem) (resp api.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Conversation panicked", "session", session.ID, "panic", r)
			resp, err = api.ChatResponse{Response: DegradedMessage, UpdatedTodoList: []api.TodoItem{}}, nil
		}
	}()

	if key, ok := MatchMemoryQuery(message); ok {
		slog.InfoContext(ctx, "Answered from memory", "session", session.ID, "key", key)
		return api.ChatResponse{
			Response:        AnswerFromMemory(key, session.Memory),
			UpdatedTodoList: NormalizeTodos(todos),
		}, nil
	}

	history := session.History
	if history.EnsureSystemMessage(SystemPrompt) {
		slog.DebugContext(ctx, "Session started", "session", session.ID)
	}
	history.Add(llm.NewUserMessage(BuildPrompt(message, todos)))

	return e.run(ctx, session, todos)
}

// run is the AWAITING_MODEL -> MODEL_RESPONDED -> TOOL_DISPATCHED loop.
func (e *AgentEngine) run(ctx context.Context, session *llm.Session, todos []api.TodoItem) (api.ChatResponse, error) {
	sysCfg := e.sysCfg.Load()
	history := session.History

	for iteration := 1; ; iteration++ {
		if iteration > sysCfg.MaxToolIterations {
			err := errs.New(errs.CodeIterationLimitExceeded,
				"model requested tools for %d consecutive rounds without answering", sysCfg.MaxToolIterations)
			slog.ErrorContext(ctx, "Iteration limit exceeded", "session", session.ID, "limit", sysCfg.MaxToolIterations)
			return api.ChatResponse{
				Response:        iterationLimitReply,
				UpdatedTodoList: NormalizeTodos(todos),
			}, err
		}

		reply, err := e.query(ctx, session)
		if err != nil {
			slog.ErrorContext(ctx, "Error contacting LLM", "session", session.ID, "error", err)
			return e.finish(history, DegradedMessage, []api.TodoItem{}), nil
		}

		if !reply.HasToolCalls() {
			return e.finalAnswer(ctx, history, reply), nil
		}

		if len(reply.ToolCalls) > 1 {
			slog.WarnContext(ctx, "Model requested several tools, running the first", "count", len(reply.ToolCalls))
			reply.ToolCalls = reply.ToolCalls[:1]
		}
		call := reply.ToolCalls[0]
		history.Add(reply)

		if resp, done := e.dispatch(ctx, session, call); done {
			return resp, nil
		}
	}
}

// query sends the transcript, the tool catalog and the answer schema.
func (e *AgentEngine) query(ctx context.Context, session *llm.Session) (llm.Message, error) {
	sysCfg := e.sysCfg.Load()
	timeout := time.Duration(sysCfg.LLMTimeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := session.History.GetMessages()
	if note := memoryNote(session.Memory); note != "" && len(messages) > 0 {
		// Transient: the note is never stored in the transcript.
		withNote := make([]llm.Message, 0, len(messages)+1)
		withNote = append(withNote, messages[0], llm.NewSystemMessage(note))
		messages = append(withNote, messages[1:]...)
	}

	return e.client.Complete(runCtx, llm.CompletionRequest{
		Messages:       messages,
		Tools:          e.toolRegistry.Specs(),
		ResponseFormat: ChatResponseFormat,
	})
}

// dispatch runs one tool call and applies the output shaping rules. done
// reports that resp is the final answer; otherwise the loop queries again.
func (e *AgentEngine) dispatch(ctx context.Context, session *llm.Session, call llm.ToolCall) (resp api.ChatResponse, done bool) {
	history := session.History
	name := call.Function.Name
	if name == "" {
		name = call.Name
	}

	slog.InfoContext(ctx, "Executing tool", "name", name, "args", call.Function.Arguments)
	result, err := tools.Dispatch(ctx, e.toolRegistry, call)
	payload := result.Payload()
	history.Add(llm.NewToolMessage(call, payload))

	switch errs.CodeOf(err) {
	case errs.CodeUnknownOperation:
		slog.WarnContext(ctx, "Unknown tool requested", "name", name)
		answer := fmt.Sprintf("Sorry, I don't know how to perform the operation '%s'.", name)
		return e.finish(history, answer, []api.TodoItem{}), true
	case errs.CodeInvalidArguments:
		slog.WarnContext(ctx, "Rejected tool arguments", "name", name, "error", err)
		return api.ChatResponse{}, false
	}

	decoded := decodePayload(payload)
	if key, ok := rememberedTools[name]; ok && !result.IsError() && decoded != nil {
		session.Memory.Write(key, decoded)
	}

	switch {
	case name == tools.NameAddProduct && !result.IsError():
		title := defaultProductTitle
		if t, ok := decoded["title"].(string); ok && t != "" {
			title = t
		}
		img, _ := decoded["image"].(string)
		item := api.ProductAdditionItem(title, img)
		answer := fmt.Sprintf("I've added the product '%s' to Shopify!", title)
		return e.finish(history, answer, []api.TodoItem{item}), true

	case name == tools.NameListProducts:
		if decoded == nil {
			decoded = map[string]any{"error": result.ErrorMessage()}
		}
		return e.finish(history, FormatProductList(decoded), []api.TodoItem{}), true
	}

	if !e.sysCfg.Load().FollowUpAfterTool {
		answer := fmt.Sprintf("Executed '%s' successfully.", name)
		return e.finish(history, answer, []api.TodoItem{}), true
	}
	return api.ChatResponse{}, false
}

// finalAnswer parses the model's answer, degrading to raw text.
func (e *AgentEngine) finalAnswer(ctx context.Context, history *llm.ChatHistory, reply llm.Message) api.ChatResponse {
	history.Add(reply)

	raw := reply.GetTextContent()
	response, todos, err := ParseFinalAnswer(raw)
	if err != nil {
		slog.WarnContext(ctx, "Malformed model output", "error", err, "preview", preview(raw, 100))
		if raw == "" {
			raw = DegradedMessage
		}
		return api.ChatResponse{Response: raw, UpdatedTodoList: []api.TodoItem{}}
	}
	return api.ChatResponse{Response: response, UpdatedTodoList: todos}
}

// finish records a locally produced answer so the transcript stays coherent.
func (e *AgentEngine) finish(history *llm.ChatHistory, response string, todos []api.TodoItem) api.ChatResponse {
	history.Add(llm.NewAssistantMessage(encodeAnswer(response, todos)))
	return api.ChatResponse{Response: response, UpdatedTodoList: todos}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
