package telegram

import (
	"fmt"
	"time"

	"shopmate/pkg/api"
	"shopmate/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramFactory creates the Telegram channel.
type TelegramFactory struct{}

// Create implements channels.ChannelFactory. An empty token disables the
// channel.
func (f *TelegramFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	var tgCfg TelegramConfig
	if err := json.Unmarshal(rawConfig, &tgCfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}
	if tgCfg.Token == "" {
		return nil, nil
	}

	timeout := time.Duration(deps.System.HTTPTimeoutMs) * time.Millisecond
	ch, err := NewTelegramChannel(tgCfg, deps.System.TelegramMessageLimit, timeout, deps.Speech)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func init() {
	channels.RegisterChannel("telegram", &TelegramFactory{})
}
