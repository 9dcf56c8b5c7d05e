package monitor

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// CLIMonitor prints every message flowing through the gateway to a
// terminal.
type CLIMonitor struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewCLIMonitor creates a monitor writing to stdout.
func NewCLIMonitor() *CLIMonitor {
	return NewCLIMonitorTo(os.Stdout)
}

// NewCLIMonitorTo creates a monitor writing to w.
func NewCLIMonitorTo(w io.Writer) *CLIMonitor {
	return &CLIMonitor{writer: w}
}

func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "CLI Monitor Active - all channel traffic will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

func (m *CLIMonitor) Stop() error {
	return nil
}

// OnMessage prints one line per message, timestamp in gray.
func (m *CLIMonitor) OnMessage(msg MonitorMessage) {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	var displayMsg string
	if msg.MessageType == KindAssistant {
		displayMsg = fmt.Sprintf("[AI] %s", msg.Content)
	} else {
		displayMsg = fmt.Sprintf("[%s/%s] %s", msg.ChannelID, msg.Username, msg.Content)
	}
	if msg.Todos > 0 {
		displayMsg += fmt.Sprintf(" (%d todos)", msg.Todos)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m %s\n", timestamp, displayMsg)
}
