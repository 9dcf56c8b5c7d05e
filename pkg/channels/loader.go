package channels

import (
	"log/slog"
	"sort"

	"shopmate/pkg/api"

	jsoniter "github.com/json-iterator/go"
)

// LoadFromConfig builds a channel for every configured platform and hands
// it to register. Unknown or failing channels are logged and skipped. It
// returns the number of channels registered.
func LoadFromConfig(register func(api.Channel), configs map[string]jsoniter.RawMessage, deps Deps) int {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name, "known", RegisteredChannels())
			continue
		}

		channel, err := factory.Create(configs[name], deps)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}
		if channel == nil {
			slog.Info("Channel disabled", "name", name)
			continue
		}

		register(channel)
		loaded++
		slog.Info("Channel registered", "name", name)
	}
	return loaded
}
