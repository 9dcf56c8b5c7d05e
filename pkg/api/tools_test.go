package api

import (
	"testing"
)

func TestToolResultPayload(t *testing.T) {
	tests := []struct {
		name   string
		result *ToolResult
		want   string
	}{
		{"success", Success(map[string]any{"id": 1}), `{"id":1}`},
		{"failure", Failure("boom", nil), `{"error":"boom"}`},
		{"failure with details", Failure("nope", map[string]any{"order_id": "42"}), `{"error":"nope","order_id":"42"}`},
		{"nil result", nil, `{"error":"Function returned no data."}`},
		{"empty result", &ToolResult{}, `{"error":"Function returned no data."}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Payload(); got != tt.want {
				t.Errorf("Payload() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToolResultIsError(t *testing.T) {
	if Success("ok").IsError() {
		t.Error("success should not be an error")
	}
	var nilResult *ToolResult
	if !nilResult.IsError() {
		t.Error("nil result should be an error")
	}
	if got := nilResult.ErrorMessage(); got != NoDataMessage {
		t.Errorf("ErrorMessage() = %q", got)
	}
}

func TestSessionContextKey(t *testing.T) {
	s := SessionContext{ChannelID: "telegram", ChatID: "99"}
	if got := s.Key(); got != "telegram:99" {
		t.Errorf("Key() = %q", got)
	}
	if got := (SessionContext{ChannelID: "web"}).Key(); got != "" {
		t.Errorf("empty chat should give empty key, got %q", got)
	}
}
