package llm

import (
	"sync"
	"testing"
)

func TestChatHistorySystemTurnInsertedOnce(t *testing.T) {
	h := NewChatHistory()

	if !h.EnsureSystemMessage("be helpful") {
		t.Fatalf("first call should insert the system turn")
	}
	h.Add(NewUserMessage("hello"))
	if h.EnsureSystemMessage("be helpful") {
		t.Fatalf("second call must not insert again")
	}

	msgs := h.GetMessages()
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}
}

func TestChatHistorySnapshotIsACopy(t *testing.T) {
	h := NewChatHistory()
	h.Add(NewUserMessage("one"))

	snap := h.GetMessages()
	snap[0] = NewUserMessage("mutated")
	h.Add(NewUserMessage("two"))

	msgs := h.GetMessages()
	if msgs[0].GetTextContent() != "one" {
		t.Fatalf("snapshot mutation leaked into history")
	}
	if len(snap) != 1 {
		t.Fatalf("snapshot should not grow")
	}
}

func TestChatHistoryConcurrentAdd(t *testing.T) {
	h := NewChatHistory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Add(NewUserMessage("x"))
		}()
	}
	wg.Wait()
	if h.Len() != 50 {
		t.Fatalf("Len = %d, want 50", h.Len())
	}
}

func TestNewToolMessageLinksCall(t *testing.T) {
	call := ToolCall{ID: "call_1", Name: "list_orders"}
	msg := NewToolMessage(call, `{"orders":[]}`)
	if msg.Role != RoleTool || msg.ToolCallID != "call_1" || msg.ToolName != "list_orders" {
		t.Fatalf("unexpected tool message: %+v", msg)
	}
	if msg.GetTextContent() != `{"orders":[]}` {
		t.Fatalf("payload lost: %q", msg.GetTextContent())
	}
}
