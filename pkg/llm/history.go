package llm

import (
	"sync"
)

// ChatHistory is an append-only transcript. Turns are never edited or
// removed once added; readers always get a copy.
type ChatHistory struct {
	messages []Message
	mu       sync.RWMutex
}

// NewChatHistory creates an empty transcript.
func NewChatHistory() *ChatHistory {
	return &ChatHistory{
		messages: make([]Message, 0),
	}
}

// Add appends turns in order.
func (h *ChatHistory) Add(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msgs...)
}

// EnsureSystemMessage inserts the system turn if the transcript is empty.
// It reports whether a turn was inserted. A non-empty transcript already
// started with its system turn, so it is left untouched.
func (h *ChatHistory) EnsureSystemMessage(prompt string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) > 0 {
		return false
	}
	h.messages = append(h.messages, NewSystemMessage(prompt))
	return true
}

// GetMessages returns a snapshot of the transcript.
func (h *ChatHistory) GetMessages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cp := make([]Message, len(h.messages))
	copy(cp, h.messages)
	return cp
}

// Len returns the number of turns.
func (h *ChatHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
