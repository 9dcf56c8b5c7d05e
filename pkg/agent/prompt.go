package agent

import (
	"fmt"
	"strings"

	"shopmate/pkg/api"
	"shopmate/pkg/llm"
)

// SystemPrompt is the fixed instruction turn that opens every transcript.
const SystemPrompt = `
You are an assistant that helps manage a todo list and can interact with Shopify orders using available tools.
Instructions:

- If the user asks to add a new task to the todo list, ONLY add the task to the list; do NOT execute or complete the task without explicit approval.
- When a task is completed, update its status to 'done', but do NOT remove it from the list.
- Always return the full todo list, with each task and its status.
- If the user's request is not clear enough or does not match any task in the todo list, ask a follow-up question and wait for further instructions.
- If the user's message does NOT request to add, complete, or remove a task, return the todo list unchanged.
- If a task involves a Shopify action (such as creating, updating, or removing a Shopify order) and the user asks you to execute it, use your tools to solve it. 
  For all other tasks, follow the user's instructions truthfully and directly.
Demo todo list:
[
  {"text": "Order a new charger from Shopify", "status": "pending"},
  {"text": "Email project update to team", "status": "pending"},
  {"text": "Create a Shopify order for alice@example.com", "status": "pending"}
]

Examples:

User message: What are my tasks now?
Assistant response:
{
  "response": "Here are your current tasks:\n1. Order a new charger from Shopify (pending)\n2. Email project update to team (pending)\n3. Create a Shopify order for alice@example.com (pending)\n\nIf you would like me to complete any of these tasks (such as placing a Shopify order), please let me know which one and I will proceed after your approval.",
  "todo_list": [
    {"text": "Order a new charger from Shopify", "status": "pending"},
    {"text": "Email project update to team", "status": "pending"},
    {"text": "Create a Shopify order for alice@example.com", "status": "pending"}
  ]
}

User message: Mark "Email project update to team" as done.
Assistant response:
{
  "response": "'Email project update to team' has been marked as done.",
  "todo_list": [
    {"text": "Order a new charger from Shopify", "status": "pending"},
    {"text": "Email project update to team", "status": "done"},
    {"text": "Create a Shopify order for alice@example.com", "status": "pending"}
  ]
}

User message: Please create the order for a phone charger for me for email dimitris@umain.com
Assistant response:
{
  "response": "I've added created the shopify order for you for user dimitris@umain.com! You have one more pending Shopify task
   on your list. Let me know if you want me to complete this for you!",
  "todo_list": [
    {"text": "Order a new charger from Shopify", "status": "done"},
    {"text": "Email project update to team", "status": "pending"},
    {"text": "Create a Shopify order for alice@example.com", "status": "pending"},
  ]
}


User message: Can you remove the latest task i added to my list?
Assistant response:
{
  "response": "I've removed the latest task called "Create a Shopify order for alice@example.com" from your todos! 
  You have one more pending Shopify task on your list. Let me know if you want me to complete this for you!",
  "todo_list": [
    {"text": "Order a new charger from Shopify", "status": "done"},
    {"text": "Email project update to team", "status": "pending"},
  ]
}
`

const (
	missingTaskText = "Missing task text"
	promptHeader    = "Here is the current todo list. Each task has a 'text' and a 'status' (either 'pending' or 'done'):\n"
)

// BuildPrompt renders the user turn: the current todo list followed by the
// user's message.
func BuildPrompt(message string, todos []api.TodoItem) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)

	if len(todos) == 0 {
		sb.WriteString("Empty!\n")
	}
	for i, todo := range todos {
		text := todo.Text
		if text == "" {
			text = missingTaskText
		}
		status := todo.Status
		if status == "" {
			status = api.TodoStatusPending
		}
		fmt.Fprintf(&sb, "%d. %s (status: %s)\n", i+1, text, status)
	}

	fmt.Fprintf(&sb, "\nUser message: %s\n", message)
	return sb.String()
}

// ChatResponseFormat constrains every final answer.
var ChatResponseFormat = &llm.ResponseFormat{
	Name:        "ChatResponse",
	Description: "A response with a message and a todo list.",
	Schema: &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"response": {Type: "string"},
			"todo_list": {
				Type: "array",
				Items: &llm.Schema{
					Type: "object",
					Properties: map[string]*llm.Schema{
						"text":   {Type: "string"},
						"status": {Type: "string"},
						"image":  {Type: "string"},
					},
					Required:             []string{"text", "status"},
					AdditionalProperties: llm.Bool(false),
				},
			},
		},
		Required:             []string{"response", "todo_list"},
		AdditionalProperties: llm.Bool(false),
	},
}

// memoryNote renders the remembered tool outcomes as a transient system turn.
// It returns "" when nothing is remembered.
func memoryNote(mem *llm.MemorySlot) string {
	var lines []string
	for _, key := range []llm.MemoryKey{llm.MemoryLastAddedProduct, llm.MemoryLastDeletedProduct} {
		v, ok := mem.Read(key)
		if !ok {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", key, b))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Remembered results of earlier actions:\n" + strings.Join(lines, "\n")
}
