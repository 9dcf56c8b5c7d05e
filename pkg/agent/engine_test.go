package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"shopmate/pkg/api"
	"shopmate/pkg/config"
	"shopmate/pkg/llm"
	"shopmate/pkg/shopify"
	"shopmate/pkg/tools"
)

// scriptedLLM replays a fixed sequence of replies and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []llm.Message
	err      error
	requests []llm.CompletionRequest
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Message{}, s.err
	}
	if len(s.replies) == 0 {
		return llm.NewAssistantMessage(`{"response":"done","todo_list":[]}`), nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptedLLM) IsTransientError(err error) bool { return false }

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func text(s string) llm.Message { return llm.NewAssistantMessage(s) }

func toolCall(name, args string) llm.Message {
	m := llm.NewAssistantMessage("")
	m.ToolCalls = []llm.ToolCall{{
		ID:       "call_" + name,
		Name:     name,
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}}
	return m
}

// shop is an in-memory commerce backend.
type shop struct {
	err      error
	products []shopify.ProductListItem
	calls    int
}

func (s *shop) CreateOrder(ctx context.Context, email string, items []shopify.LineItemInput) (*shopify.Order, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &shopify.Order{OrderID: 1001, Email: email, LineItems: []shopify.LineItem{}}, nil
}

func (s *shop) ListOrders(ctx context.Context, limit int) (*shopify.OrderList, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &shopify.OrderList{Orders: []shopify.Order{}}, nil
}

func (s *shop) DeleteOrder(ctx context.Context, orderID string) (*shopify.OrderDeletion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &shopify.OrderDeletion{OrderID: orderID, Message: "Order deleted successfully."}, nil
}

func (s *shop) CreateProduct(ctx context.Context, title, price, imageURL string) (*shopify.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p := &shopify.Product{ID: 8123456789, Title: title, Price: price}
	if imageURL != "" {
		p.Image = &imageURL
	}
	return p, nil
}

func (s *shop) DeleteProduct(ctx context.Context, productID string) (*shopify.ProductDeletion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &shopify.ProductDeletion{ID: productID, Message: "Product removed."}, nil
}

func (s *shop) ListProducts(ctx context.Context, limit int) (*shopify.ProductList, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &shopify.ProductList{Products: s.products}, nil
}

func newEngine(model *scriptedLLM, backend *shop, mutate func(*config.SystemConfig)) *AgentEngine {
	sys := config.DefaultSystemConfig()
	if mutate != nil {
		mutate(sys)
	}
	e := NewAgentEngine(model, sys, llm.NewSessionManager(sys.SessionScope == config.ScopeGlobal))
	e.SetToolRegistry(tools.NewToolRegistry(tools.CommerceTools(backend)...))
	return e
}

var sampleTodos = []api.TodoItem{
	{Text: "Order a new charger from Shopify", Status: "pending"},
	{Text: "Email project update to team", Status: "pending"},
}

func TestConverseFinalAnswer(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{
		text(`{"response":"Marked as done.","todo_list":[
			{"text":"Order a new charger from Shopify","status":"pending"},
			{"text":"Email project update to team","status":"DONE"}]}`),
	}}
	e := newEngine(model, &shop{}, nil)

	resp := e.Converse(context.Background(), "s1", `Mark "Email project update to team" as done.`, sampleTodos)
	if resp.Response != "Marked as done." || resp.Error != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.UpdatedTodoList) != 2 || resp.UpdatedTodoList[1].Status != "done" {
		t.Errorf("unexpected todo list %+v", resp.UpdatedTodoList)
	}
	if resp.SessionID != "s1" {
		t.Errorf("session id = %q", resp.SessionID)
	}

	req := model.requests[0]
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem || req.Messages[1].Role != llm.RoleUser {
		t.Fatalf("unexpected transcript %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].GetTextContent(), "1. Order a new charger from Shopify (status: pending)") {
		t.Errorf("prompt missing todo list: %s", req.Messages[1].GetTextContent())
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Name != "ChatResponse" {
		t.Errorf("response format not requested: %+v", req.ResponseFormat)
	}
	if len(req.Tools) != 6 {
		t.Errorf("expected 6 tools in catalog, got %d", len(req.Tools))
	}
}

func TestConverseAddProductShortCircuits(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{
		toolCall(tools.NameAddProduct, `{"title":"Widget","price":"9.99","image_url":"http://img/w.png"}`),
	}}
	backend := &shop{}
	e := newEngine(model, backend, nil)

	resp := e.Converse(context.Background(), "s1", "Add a product called Widget for 9.99", nil)

	if resp.Response != "I've added the product 'Widget' to Shopify!" {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.UpdatedTodoList) != 1 {
		t.Fatalf("expected one todo item, got %+v", resp.UpdatedTodoList)
	}
	item := resp.UpdatedTodoList[0]
	if !api.IsProductAddition(item) || !strings.Contains(item.Text, "Widget") || item.Image != "http://img/w.png" {
		t.Errorf("unexpected item %+v", item)
	}
	if model.calls() != 1 {
		t.Errorf("model should not be re-queried, got %d calls", model.calls())
	}

	// Memory answers without touching the model.
	resp = e.Converse(context.Background(), "s1", "What product did I just add?", nil)
	want := "The last product you added was 'Widget' (ID: 8123456789, Price: 9.99)."
	if resp.Response != want {
		t.Errorf("memory answer = %q, want %q", resp.Response, want)
	}
	if model.calls() != 1 {
		t.Errorf("memory query reached the model")
	}
}

func TestConverseAddProductFailureFollowsUp(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{
		toolCall(tools.NameAddProduct, `{"title":"Widget","price":"9.99"}`),
		text(`{"response":"Shopify rejected the product.","todo_list":[]}`),
	}}
	e := newEngine(model, &shop{err: errors.New("422 Unprocessable Entity")}, nil)

	resp := e.Converse(context.Background(), "s1", "Add Widget", nil)
	if resp.Response != "Shopify rejected the product." {
		t.Errorf("response = %q", resp.Response)
	}

	last := model.requests[1].Messages
	tool := last[len(last)-1]
	if tool.Role != llm.RoleTool || !strings.Contains(tool.GetTextContent(), "422 Unprocessable Entity") {
		t.Errorf("error payload not in transcript: %+v", tool)
	}

	resp = e.Converse(context.Background(), "s1", "what product did I just add", nil)
	if resp.Response != "Sorry, I couldn't find a record of a product you just added." {
		t.Errorf("failed add should not be remembered: %q", resp.Response)
	}
}

func TestConverseListProducts(t *testing.T) {
	tests := []struct {
		name    string
		backend *shop
		want    string
	}{
		{
			name:    "empty",
			backend: &shop{products: []shopify.ProductListItem{}},
			want:    "There are no products in the store.",
		},
		{
			name: "two products",
			backend: &shop{products: []shopify.ProductListItem{
				{ID: 2, Title: "Hat", Price: "12.00"},
				{ID: 1, Title: "Mug", Price: "4.00"},
			}},
			want: "Latest products:\n- Hat (ID: 2, Price: 12.00)\n- Mug (ID: 1, Price: 4.00)",
		},
		{
			name:    "backend error",
			backend: &shop{err: errors.New("401 Unauthorized")},
			want:    "Shopify error: 401 Unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedLLM{replies: []llm.Message{toolCall(tools.NameListProducts, `{"limit":"abc"}`)}}
			e := newEngine(model, tt.backend, nil)

			resp := e.Converse(context.Background(), "s", "Show me products", sampleTodos)
			if resp.Response != tt.want {
				t.Errorf("response = %q, want %q", resp.Response, tt.want)
			}
			if resp.UpdatedTodoList == nil || len(resp.UpdatedTodoList) != 0 {
				t.Errorf("todo list should be empty, got %+v", resp.UpdatedTodoList)
			}
			if model.calls() != 1 {
				t.Errorf("model should not be re-queried, got %d calls", model.calls())
			}
		})
	}
}

func TestConverseUnknownTool(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{toolCall("refund_order", `{}`)}}
	backend := &shop{}
	e := newEngine(model, backend, nil)

	resp := e.Converse(context.Background(), "s1", "Refund my order", sampleTodos)
	if resp.Response != "Sorry, I don't know how to perform the operation 'refund_order'." {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.UpdatedTodoList) != 0 || backend.calls != 0 || model.calls() != 1 {
		t.Errorf("unexpected side effects: todos=%v backend=%d model=%d", resp.UpdatedTodoList, backend.calls, model.calls())
	}

	// The error tool turn stays in the transcript for the next round.
	e.Converse(context.Background(), "s1", "ok", nil)
	msgs := model.requests[1].Messages
	var found bool
	for _, m := range msgs {
		if m.Role == llm.RoleTool && m.GetTextContent() == `{"error":"Unknown function: refund_order"}` {
			found = true
		}
	}
	if !found {
		t.Error("unknown-function tool turn missing from transcript")
	}
}

func TestConverseFollowUpAfterTool(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{
		toolCall(tools.NameAddOrder, `{"customer_email":"dimitris@umain.com","line_items":[{"title":"Charger","quantity":1,"price":19.9}]}`),
		text(`{"response":"Order created!","todo_list":[{"text":"Order a new charger from Shopify","status":"done"}]}`),
	}}
	e := newEngine(model, &shop{}, nil)

	resp := e.Converse(context.Background(), "s1", "Create the charger order", sampleTodos[:1])
	if resp.Response != "Order created!" || resp.UpdatedTodoList[0].Status != "done" {
		t.Errorf("unexpected response %+v", resp)
	}
	if model.calls() != 2 {
		t.Errorf("expected a follow-up query, got %d calls", model.calls())
	}

	// assistant(tool call) + tool turn precede the follow-up query.
	msgs := model.requests[1].Messages
	n := len(msgs)
	if msgs[n-2].Role != llm.RoleAssistant || !msgs[n-2].HasToolCalls() || msgs[n-1].Role != llm.RoleTool {
		t.Errorf("tool pair missing: %+v", msgs[n-2:])
	}
	if msgs[n-1].ToolCallID != msgs[n-2].ToolCalls[0].ID {
		t.Errorf("tool turn not linked to its call")
	}
}

func TestConverseWithoutFollowUp(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{toolCall(tools.NameListOrders, `{}`)}}
	e := newEngine(model, &shop{}, func(c *config.SystemConfig) { c.FollowUpAfterTool = false })

	resp := e.Converse(context.Background(), "s1", "List orders", nil)
	if resp.Response != "Executed 'list_orders' successfully." {
		t.Errorf("response = %q", resp.Response)
	}
	if model.calls() != 1 {
		t.Errorf("expected a single query, got %d", model.calls())
	}
}

func TestConverseProviderFailure(t *testing.T) {
	model := &scriptedLLM{err: errors.New("401 invalid api key")}
	e := newEngine(model, &shop{}, nil)

	resp := e.Converse(context.Background(), "s1", "hi", sampleTodos)
	if resp.Response != DegradedMessage {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.UpdatedTodoList == nil || len(resp.UpdatedTodoList) != 0 || resp.Error != "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if model.calls() != 1 {
		t.Errorf("provider failure must not be retried, got %d calls", model.calls())
	}
}

func TestConverseMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain text", "Sure, here you go"},
		{"missing todo list", `{"response":"hi","todo_list":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedLLM{replies: []llm.Message{text(tt.raw)}}
			e := newEngine(model, &shop{}, nil)

			resp := e.Converse(context.Background(), "s1", "hi", sampleTodos)
			if resp.Response != tt.raw {
				t.Errorf("response = %q, want raw text", resp.Response)
			}
			if resp.UpdatedTodoList == nil || len(resp.UpdatedTodoList) != 0 {
				t.Errorf("todo list should be empty, got %+v", resp.UpdatedTodoList)
			}
		})
	}
}

func TestConverseIterationLimit(t *testing.T) {
	var replies []llm.Message
	for i := 0; i < 10; i++ {
		replies = append(replies, toolCall(tools.NameListOrders, `{}`))
	}
	model := &scriptedLLM{replies: replies}
	e := newEngine(model, &shop{}, func(c *config.SystemConfig) { c.MaxToolIterations = 3 })

	resp := e.Converse(context.Background(), "s1", "loop forever", sampleTodos)
	if resp.Error == "" || resp.Response == "" {
		t.Fatalf("iteration limit must be reported: %+v", resp)
	}
	if model.calls() != 3 {
		t.Errorf("expected 3 model calls, got %d", model.calls())
	}
	if len(resp.UpdatedTodoList) != len(sampleTodos) {
		t.Errorf("todo list should be returned unchanged, got %+v", resp.UpdatedTodoList)
	}
	if e.sessions.Count() != 0 {
		t.Errorf("failed session should be dropped")
	}
}

func TestConverseInvalidArgumentsContinue(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{
		toolCall(tools.NameRemoveOrder, `{}`),
		text(`{"response":"Which order should I delete?","todo_list":[]}`),
	}}
	backend := &shop{}
	e := newEngine(model, backend, nil)

	resp := e.Converse(context.Background(), "s1", "delete the order", nil)
	if resp.Response != "Which order should I delete?" {
		t.Errorf("response = %q", resp.Response)
	}
	if backend.calls != 0 {
		t.Errorf("invalid arguments reached the backend")
	}
	msgs := model.requests[1].Messages
	if got := msgs[len(msgs)-1].GetTextContent(); !strings.Contains(got, "order_id is required") {
		t.Errorf("validation error not fed back: %s", got)
	}
}

func TestConverseBackendErrorNeverRaises(t *testing.T) {
	for _, name := range []string{tools.NameAddOrder, tools.NameRemoveOrder, tools.NameListOrders, tools.NameRemoveProduct} {
		t.Run(name, func(t *testing.T) {
			args := map[string]string{
				tools.NameAddOrder:      `{"customer_email":"a@b.c","line_items":[]}`,
				tools.NameRemoveOrder:   `{"order_id":"1"}`,
				tools.NameListOrders:    `{}`,
				tools.NameRemoveProduct: `{"product_id":"1"}`,
			}[name]
			model := &scriptedLLM{replies: []llm.Message{toolCall(name, args), text("")}}
			e := newEngine(model, &shop{err: errors.New("connection refused")}, nil)

			resp := e.Converse(context.Background(), "s1", "do it", nil)
			if resp.Response == "" {
				t.Errorf("response must not be empty: %+v", resp)
			}
		})
	}
}

func TestConverseSessionScopes(t *testing.T) {
	run := func(scope string) *scriptedLLM {
		model := &scriptedLLM{}
		e := newEngine(model, &shop{}, func(c *config.SystemConfig) { c.SessionScope = scope })
		e.Converse(context.Background(), "alice", "hi", nil)
		e.Converse(context.Background(), "bob", "hi", nil)
		return model
	}

	// Per-session: bob starts from a fresh transcript.
	if got := len(run(config.ScopeSession).requests[1].Messages); got != 2 {
		t.Errorf("session scope: bob saw %d messages, want 2", got)
	}
	// Global: bob sees alice's turns.
	if got := len(run(config.ScopeGlobal).requests[1].Messages); got <= 2 {
		t.Errorf("global scope: bob saw %d messages, want shared transcript", got)
	}
}

func TestConverseMemoryIsIdempotent(t *testing.T) {
	model := &scriptedLLM{}
	e := newEngine(model, &shop{}, nil)

	first := e.Converse(context.Background(), "s1", "what product did I just delete?", nil)
	second := e.Converse(context.Background(), "s1", "what product did I just delete?", nil)
	if first.Response != second.Response {
		t.Errorf("responses differ: %q vs %q", first.Response, second.Response)
	}
	if first.Response != "Sorry, I couldn't find a record of a product you just deleted." {
		t.Errorf("response = %q", first.Response)
	}
	if model.calls() != 0 {
		t.Errorf("memory queries must not reach the model")
	}
}

func TestConverseRemembersDeletedProduct(t *testing.T) {
	model := &scriptedLLM{replies: []llm.Message{
		toolCall(tools.NameRemoveProduct, `{"product_id":"632910392"}`),
		text(`{"response":"Removed.","todo_list":[]}`),
		text(`{"response":"noted","todo_list":[]}`),
	}}
	e := newEngine(model, &shop{}, nil)

	e.Converse(context.Background(), "s1", "remove product 632910392", nil)
	resp := e.Converse(context.Background(), "s1", "Which product did I just remove?", nil)
	if resp.Response != "The last product you deleted had ID 632910392." {
		t.Errorf("response = %q", resp.Response)
	}

	// The memory note rides along with the next model query.
	e.Converse(context.Background(), "s1", "thanks", nil)
	req := model.requests[len(model.requests)-1]
	if req.Messages[1].Role != llm.RoleSystem || !strings.Contains(req.Messages[1].GetTextContent(), "last_deleted_product") {
		t.Errorf("memory note missing: %+v", req.Messages[1])
	}
}
