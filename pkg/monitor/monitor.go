package monitor

import "time"

// Message kinds reported to a Monitor.
const (
	KindUser      = "USER"
	KindAssistant = "ASSISTANT"
)

// MonitorMessage is one user message or assistant reply seen by the gateway.
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string // KindUser or KindAssistant
	ChannelID   string
	Username    string
	Content     string
	// Todos is the size of the todo list attached to the message.
	Todos int
}

// Monitor observes the traffic flowing through every channel.
type Monitor interface {
	Start() error
	Stop() error
	OnMessage(msg MonitorMessage)
}
