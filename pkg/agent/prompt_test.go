package agent

import (
	"strings"
	"testing"

	"shopmate/pkg/api"
	"shopmate/pkg/llm"
)

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name  string
		todos []api.TodoItem
		want  []string
	}{
		{
			name: "empty list",
			want: []string{"Empty!\n", "\nUser message: hello\n"},
		},
		{
			name: "defaults for missing fields",
			todos: []api.TodoItem{
				{Text: "Buy milk", Status: "done"},
				{},
			},
			want: []string{
				"1. Buy milk (status: done)\n",
				"2. Missing task text (status: pending)\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPrompt("hello", tt.todos)
			if !strings.HasPrefix(got, promptHeader) {
				t.Errorf("missing header: %q", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("prompt missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestMemoryNote(t *testing.T) {
	mem := llm.NewMemorySlot()
	if note := memoryNote(mem); note != "" {
		t.Fatalf("empty memory should give no note, got %q", note)
	}

	mem.Write(llm.MemoryLastAddedProduct, map[string]any{"title": "Mug", "id": 1})
	note := memoryNote(mem)
	if !strings.Contains(note, `- last_added_product: {"id":1,"title":"Mug"}`) {
		t.Errorf("unexpected note %q", note)
	}
	if strings.Contains(note, "last_deleted_product") {
		t.Errorf("absent entry rendered: %q", note)
	}
}
