package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"shopmate/pkg/api"
	"shopmate/pkg/monitor"
)

// GatewayManager owns the registered channels and routes every turn they
// receive to the conversation engine. It implements api.ChannelContext.
type GatewayManager struct {
	channels     map[string]api.Channel
	conversation api.Conversation
	monitor      monitor.Monitor
	mu           sync.RWMutex
}

// NewGatewayManager creates an empty manager.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]api.Channel),
	}
}

// SetConversation sets the engine that answers every turn.
func (g *GatewayManager) SetConversation(c api.Conversation) {
	g.conversation = c
}

// SetMonitor sets the traffic monitor.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register adds a channel, replacing any channel with the same ID.
func (g *GatewayManager) Register(c api.Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel returns a registered channel.
func (g *GatewayManager) GetChannel(id string) (api.Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// ChannelIDs lists the registered channels in name order.
func (g *GatewayManager) ChannelIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.channels))
	for id := range g.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartAll starts every registered channel.
func (g *GatewayManager) StartAll() error {
	for _, id := range g.ChannelIDs() {
		c, _ := g.GetChannel(id)
		slog.Info("Starting channel", "channel", id)
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every channel and the monitor.
func (g *GatewayManager) StopAll() {
	for _, id := range g.ChannelIDs() {
		c, _ := g.GetChannel(id)
		slog.Info("Stopping channel", "channel", id)
		if err := c.Stop(); err != nil {
			slog.Error("Error stopping channel", "channel", id, "error", err)
		}
	}
	if g.monitor != nil {
		g.monitor.Stop()
	}
}

// Converse implements api.ChannelContext.
func (g *GatewayManager) Converse(ctx context.Context, session api.SessionContext, message string, todos []api.TodoItem) api.ChatResponse {
	slog.DebugContext(ctx, "Gateway received message",
		"channel", session.ChannelID, "user", session.Username, "todos", len(todos))
	g.report(monitor.KindUser, session, message, len(todos))

	if g.conversation == nil {
		slog.WarnContext(ctx, "No conversation engine set", "channel", session.ChannelID)
		return api.ChatResponse{
			Response:        "The assistant is not ready yet. Please try again shortly.",
			UpdatedTodoList: todos,
			SessionID:       session.ChatID,
		}
	}

	resp := g.conversation.Converse(ctx, session.Key(), message, todos)
	// Channels see their own session id, not the namespaced key.
	resp.SessionID = session.ChatID

	g.report(monitor.KindAssistant, session, resp.Response, len(resp.UpdatedTodoList))
	return resp
}

func (g *GatewayManager) report(kind string, session api.SessionContext, content string, todos int) {
	if g.monitor == nil {
		return
	}
	g.monitor.OnMessage(monitor.MonitorMessage{
		Timestamp:   time.Now(),
		MessageType: kind,
		ChannelID:   session.ChannelID,
		Username:    session.Username,
		Content:     content,
		Todos:       todos,
	})
}
