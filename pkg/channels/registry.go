package channels

import (
	"sort"
	"sync"

	"shopmate/pkg/api"
	"shopmate/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// Deps are the shared resources every channel factory may use.
type Deps struct {
	System *config.SystemConfig
	// Speech is nil when no speech credentials are configured.
	Speech api.Speech
}

// ChannelFactory creates a platform-specific channel from its raw config.
type ChannelFactory interface {
	// Create may return (nil, nil) when the channel is configured off.
	Create(rawConfig jsoniter.RawMessage, deps Deps) (api.Channel, error)
}

var (
	channelRegistry = make(map[string]ChannelFactory)
	registryMu      sync.RWMutex
)

// RegisterChannel adds a factory; called from init().
func RegisterChannel(name string, factory ChannelFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	channelRegistry[name] = factory
}

// GetChannelFactory looks up a factory by platform name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := channelRegistry[name]
	return f, ok
}

// RegisteredChannels lists the known platform names.
func RegisteredChannels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(channelRegistry))
	for name := range channelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
