package openailm

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"shopmate/pkg/config"
	"shopmate/pkg/llm"
)

// OpenAIFactory creates OpenAI clients, one per model.
type OpenAIFactory struct{}

// Create implements llm.ProviderFactory.
func (f *OpenAIFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	if len(cfg.APIKeys) == 0 || cfg.APIKeys[0] == "" {
		return nil, errors.New("openai: api key missing")
	}
	apiKey := cfg.APIKeys[0]

	httpClient := &http.Client{Timeout: time.Duration(sys.LLMTimeoutMs) * time.Millisecond}

	var clients []llm.LLMClient
	for _, model := range cfg.Models {
		client, err := NewClient("openai", apiKey, model, cfg.BaseURL, cfg.Options, httpClient)
		if err != nil {
			slog.Error("Failed to create OpenAI client", "model", model, "error", err)
			continue
		}
		client.SetDebug(sys.DebugLLM)
		clients = append(clients, client)
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{})
}
