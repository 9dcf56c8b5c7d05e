package web

import (
	"fmt"

	"shopmate/pkg/api"
	"shopmate/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

// WebFactory creates the web channel.
type WebFactory struct{}

// Create implements channels.ChannelFactory.
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	cfg := WebConfig{Port: 8000}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid web port %d", cfg.Port)
	}

	return NewWebChannel(cfg, deps.Speech), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
