package gateway

import (
	"fmt"

	"shopmate/pkg/api"
	"shopmate/pkg/monitor"
)

// GatewayBuilder assembles a GatewayManager from pre-built parts and
// starts it.
type GatewayBuilder struct {
	gw           *GatewayManager
	monitor      monitor.Monitor
	channels     []api.Channel
	loaders      []func(*GatewayManager)
	conversation api.Conversation
}

// NewGatewayBuilder creates a builder around a fresh manager.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor sets the traffic monitor; Build starts it.
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithChannel adds pre-built channels.
func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithChannelLoader registers a callback that creates and registers
// channels from configuration during Build.
func (b *GatewayBuilder) WithChannelLoader(loader func(*GatewayManager)) *GatewayBuilder {
	b.loaders = append(b.loaders, loader)
	return b
}

// WithConversation sets the engine that answers every turn.
func (b *GatewayBuilder) WithConversation(c api.Conversation) *GatewayBuilder {
	b.conversation = c
	return b
}

// Build wires everything, starts the monitor, then the channels.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.conversation == nil {
		return nil, fmt.Errorf("gateway needs a conversation engine")
	}
	b.gw.SetConversation(b.conversation)

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		b.gw.Register(c)
	}
	for _, load := range b.loaders {
		load(b.gw)
	}

	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}
	return b.gw, nil
}
