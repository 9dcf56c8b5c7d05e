package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shopmate/pkg/agent"
	"shopmate/pkg/api"
	"shopmate/pkg/channels"
	_ "shopmate/pkg/channels/autoload" // registers channel factories
	"shopmate/pkg/config"
	"shopmate/pkg/gateway"
	"shopmate/pkg/llm"
	_ "shopmate/pkg/llm/autoload" // registers LLM providers
	"shopmate/pkg/monitor"
	"shopmate/pkg/shopify"
	"shopmate/pkg/speech"
	"shopmate/pkg/tools"

	jsoniter "github.com/json-iterator/go"
)

func main() {
	monitor.PrintBanner()
	monitor.SetupSlog("info")

	dir := os.Getenv("SHOPMATE_CONFIG_DIR")
	if dir == "" {
		dir = "."
	}

	// --- 0. Configuration ---
	cfg, sysCfg, err := config.Load(dir)
	if err != nil {
		slog.Error("Failed to load configuration", "dir", dir, "error", err)
		os.Exit(1)
	}
	monitor.SetLevel(sysCfg.LogLevel)

	// --- 1. Model provider ---
	client, err := llm.NewFromConfig(cfg.LLM, sysCfg)
	if err != nil {
		slog.Error("Failed to init LLM client", "error", err)
		os.Exit(1)
	}

	// --- 2. Commerce backend and tools ---
	if cfg.Shopify.SkipVerify() {
		slog.Warn("TLS certificate verification is disabled for Shopify; set shopify.insecure_skip_verify=false for production stores",
			"shop", cfg.Shopify.ShopURL)
	}
	shop := shopify.NewClient(cfg.Shopify, time.Duration(sysCfg.HTTPTimeoutMs)*time.Millisecond)
	registry := tools.NewToolRegistry(tools.CommerceTools(shop)...)
	slog.Info("Tools registered", "count", len(registry.GetAll()))

	// --- 3. Conversation engine ---
	sessions := llm.NewSessionManager(sysCfg.SessionScope == config.ScopeGlobal)
	engine := agent.NewAgentEngine(client, sysCfg, sessions)
	engine.SetToolRegistry(registry)

	// --- 4. Speech (optional) ---
	var speechSvc api.Speech
	if cfg.Speech.APIKey != "" {
		speechSvc = speech.NewService(cfg.Speech, time.Duration(sysCfg.LLMTimeoutMs)*time.Millisecond, nil)
	} else {
		slog.Warn("No speech API key configured; audio endpoints are disabled")
	}

	// --- 5. Gateway and channels ---
	channelConfigs := cfg.Channels
	if len(channelConfigs) == 0 {
		channelConfigs = map[string]jsoniter.RawMessage{"web": jsoniter.RawMessage(`{}`)}
	}
	deps := channels.Deps{System: sysCfg, Speech: speechSvc}

	gw, err := gateway.NewGatewayBuilder().
		WithMonitor(monitor.NewCLIMonitor()).
		WithConversation(engine).
		WithChannelLoader(func(g *gateway.GatewayManager) {
			channels.LoadFromConfig(g.Register, channelConfigs, deps)
		}).
		Build()
	if err != nil {
		slog.Error("Failed to build gateway", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- 6. Hot reload of system.json ---
	go config.WatchSystemConfig(ctx, filepath.Join(dir, "system.json"), func(next *config.SystemConfig) {
		monitor.SetLevel(next.LogLevel)
		engine.SetSystemConfig(next)
		slog.Info("System configuration reloaded",
			"max_tool_iterations", next.MaxToolIterations, "follow_up_after_tool", next.FollowUpAfterTool)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Received shutdown signal. Stopping services...")

	cancel()
	gw.StopAll()
	slog.Info("Bye!")
}
