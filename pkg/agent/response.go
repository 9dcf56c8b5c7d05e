package agent

import (
	"strings"

	"shopmate/pkg/api"
	"shopmate/pkg/errs"
)

// finalAnswer is the wire shape the model is asked to produce.
type finalAnswer struct {
	Response *string        `json:"response"`
	TodoList []api.TodoItem `json:"todo_list"`
}

// ParseFinalAnswer decodes a model's final answer. A missing response or
// todo_list makes it malformed.
func ParseFinalAnswer(raw string) (string, []api.TodoItem, error) {
	text := stripCodeFence(raw)

	var fa finalAnswer
	if err := json.Unmarshal([]byte(text), &fa); err != nil {
		return "", nil, errs.Wrap(err, errs.CodeMalformedModelOutput, "final answer is not valid JSON")
	}
	if fa.Response == nil {
		return "", nil, errs.New(errs.CodeMalformedModelOutput, "final answer has no response")
	}
	if fa.TodoList == nil {
		return "", nil, errs.New(errs.CodeMalformedModelOutput, "final answer has no todo_list")
	}
	return *fa.Response, NormalizeTodos(fa.TodoList), nil
}

// NormalizeTodos lower-cases statuses, maps unknown ones to pending and
// never returns nil.
func NormalizeTodos(todos []api.TodoItem) []api.TodoItem {
	out := make([]api.TodoItem, 0, len(todos))
	for _, t := range todos {
		status := strings.ToLower(strings.TrimSpace(t.Status))
		if status != api.TodoStatusDone {
			status = api.TodoStatusPending
		}
		out = append(out, api.TodoItem{
			Text:   t.Text,
			Status: status,
			Image:  strings.TrimSpace(t.Image),
		})
	}
	return out
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// encodeAnswer renders an answer in the same JSON shape the model produces,
// for the assistant turn recorded in the transcript.
func encodeAnswer(response string, todos []api.TodoItem) string {
	if todos == nil {
		todos = []api.TodoItem{}
	}
	b, err := json.Marshal(map[string]any{"response": response, "todo_list": todos})
	if err != nil {
		return response
	}
	return string(b)
}
