package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shopmate/pkg/api"
	"shopmate/pkg/monitor"
)

type fakeConversation struct {
	sessionIDs []string
}

func (f *fakeConversation) Converse(ctx context.Context, sessionID, message string, todos []api.TodoItem) api.ChatResponse {
	f.sessionIDs = append(f.sessionIDs, sessionID)
	return api.ChatResponse{Response: "echo: " + message, UpdatedTodoList: todos, SessionID: sessionID}
}

type fakeChannel struct {
	id       string
	startErr error
	started  api.ChannelContext
	stopped  bool
}

func (c *fakeChannel) ID() string { return c.id }
func (c *fakeChannel) Start(ctx api.ChannelContext) error {
	c.started = ctx
	return c.startErr
}
func (c *fakeChannel) Stop() error {
	c.stopped = true
	return nil
}

type recordingMonitor struct {
	mu       sync.Mutex
	started  bool
	messages []monitor.MonitorMessage
}

func (m *recordingMonitor) Start() error { m.started = true; return nil }
func (m *recordingMonitor) Stop() error  { return nil }
func (m *recordingMonitor) OnMessage(msg monitor.MonitorMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func TestBuildStartsChannels(t *testing.T) {
	conv := &fakeConversation{}
	mon := &recordingMonitor{}
	web := &fakeChannel{id: "web"}
	tg := &fakeChannel{id: "telegram"}

	gw, err := NewGatewayBuilder().
		WithMonitor(mon).
		WithConversation(conv).
		WithChannel(web).
		WithChannelLoader(func(g *GatewayManager) { g.Register(tg) }).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !mon.started || web.started == nil || tg.started == nil {
		t.Fatal("monitor and channels should be started")
	}
	if ids := gw.ChannelIDs(); len(ids) != 2 || ids[0] != "telegram" {
		t.Errorf("unexpected channels %v", ids)
	}

	gw.StopAll()
	if !web.stopped || !tg.stopped {
		t.Error("channels should be stopped")
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := NewGatewayBuilder().Build(); err == nil {
		t.Error("expected error without a conversation engine")
	}

	_, err := NewGatewayBuilder().
		WithConversation(&fakeConversation{}).
		WithChannel(&fakeChannel{id: "web", startErr: errors.New("port in use")}).
		Build()
	if err == nil {
		t.Error("expected channel start error")
	}
}

func TestConverseRoutesSessionKey(t *testing.T) {
	conv := &fakeConversation{}
	mon := &recordingMonitor{}
	gw := NewGatewayManager()
	gw.SetConversation(conv)
	gw.SetMonitor(mon)

	session := api.SessionContext{ChannelID: "telegram", UserID: "7", ChatID: "99", Username: "bob"}
	todos := []api.TodoItem{{Text: "a", Status: "pending"}}
	resp := gw.Converse(context.Background(), session, "hi", todos)

	if conv.sessionIDs[0] != "telegram:99" {
		t.Errorf("session key = %q", conv.sessionIDs[0])
	}
	if resp.SessionID != "99" || resp.Response != "echo: hi" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(mon.messages) != 2 || mon.messages[0].MessageType != monitor.KindUser || mon.messages[1].MessageType != monitor.KindAssistant {
		t.Errorf("unexpected monitor traffic %+v", mon.messages)
	}
	if mon.messages[0].Todos != 1 {
		t.Errorf("todo count not reported")
	}
}

func TestConverseWithoutEngine(t *testing.T) {
	gw := NewGatewayManager()
	resp := gw.Converse(context.Background(), api.SessionContext{ChannelID: "web", ChatID: "x"}, "hi", nil)
	if resp.Response == "" || resp.SessionID != "x" {
		t.Errorf("unexpected response %+v", resp)
	}
}
