package llm

import (
	"context"
	"log/slog"
	"time"

	"shopmate/pkg/errs"

	jsoniter "github.com/json-iterator/go"
)

// json is used for all JSON handling inside package llm.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMUsage is the provider-neutral token accounting.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	CachedTokens     int    `json:"cached_tokens,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage records token usage for one completion.
func LogUsage(ctx context.Context, provider, model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	slog.DebugContext(ctx, "LLM usage",
		"provider", provider,
		"model", model,
		"prompt", usage.PromptTokens,
		"completion", usage.CompletionTokens,
		"total", usage.TotalTokens,
		"cached", usage.CachedTokens,
		"stop", usage.StopReason,
	)
}

// CompletionRequest is one round trip to the model.
type CompletionRequest struct {
	// Messages is the full transcript, system turn first.
	Messages []Message
	// Tools is the catalog the model may choose from.
	Tools []ToolSpec
	// ResponseFormat constrains non-tool answers; nil leaves output free-form.
	ResponseFormat *ResponseFormat
}

// LLMClient is the provider-neutral model interface.
type LLMClient interface {
	// Complete sends the transcript and returns the assistant turn, which
	// carries either tool calls or text content.
	Complete(ctx context.Context, req CompletionRequest) (Message, error)

	// IsTransientError reports whether err is worth retrying (503, rate limit).
	IsTransientError(err error) bool
}

// FallbackClient tries several clients in order.
type FallbackClient struct {
	Clients    []LLMClient
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackClient) Complete(ctx context.Context, req CompletionRequest) (Message, error) {
	var lastErr error
	for i, client := range f.Clients {
		if i > 0 {
			slog.WarnContext(ctx, "Previous provider failed, trying fallback", "provider", i+1)
		}

		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for attempt := 1; attempt <= maxRetries; attempt++ {
			if attempt > 1 {
				slog.InfoContext(ctx, "Retrying provider", "provider", i+1, "attempt", attempt, "max", maxRetries)
				select {
				case <-ctx.Done():
					return Message{}, errs.Wrap(ctx.Err(), errs.CodeProviderUnavailable, "cancelled while retrying")
				case <-time.After(time.Duration(attempt-1) * f.RetryDelay):
				}
			}

			msg, err := client.Complete(ctx, req)
			if err == nil {
				return msg, nil
			}
			lastErr = err

			if client.IsTransientError(err) && attempt < maxRetries {
				slog.WarnContext(ctx, "Provider failed with transient error", "provider", i+1, "error", err)
				continue
			}

			slog.ErrorContext(ctx, "Provider failed", "provider", i+1, "error", err)
			break
		}
	}
	if lastErr == nil {
		return Message{}, errs.New(errs.CodeProviderUnavailable, "no providers configured")
	}
	return Message{}, errs.Wrap(lastErr, errs.CodeProviderUnavailable, "all %d providers failed", len(f.Clients))
}

// IsTransientError is false: a FallbackClient failure means every child gave up.
func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}
