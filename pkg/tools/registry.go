package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"shopmate/pkg/api"
	"shopmate/pkg/errs"
	"shopmate/pkg/llm"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToolRegistry acts as a central inventory for all tools available to the Agent.
// The catalog order is registration order.
type ToolRegistry struct {
	mu    sync.RWMutex        // Protects concurrent access to the tools map
	tools map[string]api.Tool // Internal map of tool name to implementation
	order []string
}

// NewToolRegistry creates a new tool registry
func NewToolRegistry(tools ...api.Tool) *ToolRegistry {
	tr := &ToolRegistry{
		tools: make(map[string]api.Tool),
	}
	for _, t := range tools {
		tr.Register(t)
	}
	return tr
}

// Register adds a tool to the registry, replacing one with the same name.
func (tr *ToolRegistry) Register(tool api.Tool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, exists := tr.tools[tool.Name()]; !exists {
		tr.order = append(tr.order, tool.Name())
	}
	tr.tools[tool.Name()] = tool
}

// Unregister removes a tool from the registry
func (tr *ToolRegistry) Unregister(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.tools[name]; !ok {
		return
	}
	delete(tr.tools, name)
	for i, n := range tr.order {
		if n == name {
			tr.order = append(tr.order[:i], tr.order[i+1:]...)
			break
		}
	}
}

// Get retrieves a tool by name
func (tr *ToolRegistry) Get(name string) (api.Tool, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	tool, ok := tr.tools[name]
	return tool, ok
}

// GetAll returns all registered tools in registration order.
func (tr *ToolRegistry) GetAll() []api.Tool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	tools := make([]api.Tool, 0, len(tr.order))
	for _, name := range tr.order {
		tools = append(tools, tr.tools[name])
	}
	return tools
}

// Specs is the catalog sent to the model.
func (tr *ToolRegistry) Specs() []llm.ToolSpec {
	all := tr.GetAll()
	specs := make([]llm.ToolSpec, 0, len(all))
	for _, t := range all {
		specs = append(specs, llm.SpecOf(t))
	}
	return specs
}

// Resolve looks a tool up by name. An unknown name is an
// errs.CodeUnknownOperation error.
func (tr *ToolRegistry) Resolve(name string) (api.Tool, error) {
	if t, ok := tr.Get(name); ok {
		return t, nil
	}
	return nil, errs.New(errs.CodeUnknownOperation, "Unknown function: %s", name)
}

// Dispatch resolves, validates and executes one tool call. It always returns
// a non-nil result; the error only classifies failures that happened before
// the tool ran (unknown operation, invalid arguments).
func Dispatch(ctx context.Context, registry api.ToolRegistry, call llm.ToolCall) (*api.ToolResult, error) {
	name := call.Function.Name
	if name == "" {
		name = call.Name
	}

	tool, err := registry.Resolve(name)
	if err != nil {
		return api.Failure(err.Error(), nil), err
	}

	args, err := DecodeArguments(call.Function.Arguments)
	if err != nil {
		return api.Failure(err.Error(), nil), err
	}
	if err := Validate(tool.Parameters(), args); err != nil {
		return api.Failure(err.Error(), nil), err
	}

	return execute(ctx, tool, args), nil
}

// DecodeArguments parses the model's raw argument string. Empty input is an
// empty argument map.
func DecodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errs.Wrap(err, errs.CodeInvalidArguments, "arguments are not a JSON object")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// execute runs the tool and folds any error or panic into an error payload.
func execute(ctx context.Context, tool api.Tool, args map[string]any) (result *api.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Tool panicked", "tool", tool.Name(), "panic", r)
			result = api.Failure(fmt.Sprintf("tool %s crashed: %v", tool.Name(), r), nil)
		}
	}()

	res, err := tool.Execute(ctx, args)
	if err != nil {
		slog.WarnContext(ctx, "Tool failed", "tool", tool.Name(), "error", err)
		return api.Failure(err.Error(), nil)
	}
	if res == nil || res.IsError() {
		// Normalises nil and empty results into the no-data sentinel.
		return api.Failure(res.ErrorMessage(), detailsOf(res))
	}
	return res
}

func detailsOf(r *api.ToolResult) map[string]any {
	if r == nil {
		return nil
	}
	return r.Details
}
