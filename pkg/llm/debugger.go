package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// RequestIDContextKey carries the per-turn request id used for log
// correlation and debug dump naming.
type requestIDKey struct{}

var RequestIDContextKey = requestIDKey{}

// WithRequestID returns ctx tagged with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// RequestID extracts the id set by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

var exchangeSeq atomic.Uint64

// ExchangeRecorder dumps provider requests and responses to
// debug/llm/<provider>/ when enabled.
type ExchangeRecorder struct {
	provider string
	enabled  atomic.Bool
}

// NewExchangeRecorder creates a recorder for provider.
func NewExchangeRecorder(provider string, enabled bool) *ExchangeRecorder {
	r := &ExchangeRecorder{provider: provider}
	r.enabled.Store(enabled)
	return r
}

// SetEnabled toggles recording at runtime.
func (r *ExchangeRecorder) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Record writes one exchange as pretty JSON. Failures are logged and ignored.
func (r *ExchangeRecorder) Record(ctx context.Context, request, response any, callErr error) {
	if r == nil || !r.enabled.Load() {
		return
	}

	dir := filepath.Join("debug", "llm", r.provider)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.WarnContext(ctx, "Failed to create debug directory", "dir", dir, "error", err)
		return
	}

	name := RequestID(ctx)
	if name == "" {
		name = time.Now().Format("20060102_150405")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%04d.json", name, exchangeSeq.Add(1)))

	entry := map[string]any{
		"provider": r.provider,
		"time":     time.Now().Format(time.RFC3339),
		"request":  request,
		"response": response,
	}
	if callErr != nil {
		entry["error"] = callErr.Error()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode debug exchange", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.WarnContext(ctx, "Failed to write debug exchange", "file", path, "error", err)
		return
	}
	slog.DebugContext(ctx, "LLM exchange recorded", "file", path)
}
