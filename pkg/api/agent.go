package api

import (
	"context"
	"fmt"
	"strings"
)

// Todo status values. Anything else is normalised to TodoStatusPending.
const (
	TodoStatusPending = "pending"
	TodoStatusDone    = "done"
)

// TodoItem is one entry of the user-visible task list.
type TodoItem struct {
	Text   string `json:"text"`
	Status string `json:"status"`
	Image  string `json:"image,omitempty"`
}

const (
	productAdditionPrefix = "Add product '"
	productAdditionSuffix = "' to Shopify"
)

// ProductAdditionItem is the completed task recorded when a product is
// created in the store.
func ProductAdditionItem(title, image string) TodoItem {
	return TodoItem{
		Text:   fmt.Sprintf("%s%s%s", productAdditionPrefix, title, productAdditionSuffix),
		Status: TodoStatusDone,
		Image:  image,
	}
}

// IsProductAddition reports whether item was produced by ProductAdditionItem.
func IsProductAddition(item TodoItem) bool {
	return item.Status == TodoStatusDone &&
		strings.HasPrefix(item.Text, productAdditionPrefix) &&
		strings.HasSuffix(item.Text, productAdditionSuffix)
}

// ChatResponse is what every conversation turn produces, successful or not.
type ChatResponse struct {
	Response        string     `json:"response"`
	UpdatedTodoList []TodoItem `json:"updated_todo_list"`
	Error           string     `json:"error"`
	SessionID       string     `json:"session_id,omitempty"`
}

// Conversation is the core reasoning engine as seen by transports.
// Converse never fails: every failure is folded into the response.
type Conversation interface {
	Converse(ctx context.Context, sessionID, message string, todos []TodoItem) ChatResponse
}
