package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session scope values for SystemConfig.SessionScope.
const (
	ScopeSession = "session"
	ScopeGlobal  = "global"
)

// Config defines the business-level configuration loaded from config.json.
// Secrets are normally supplied through the environment (or a .env file)
// and either referenced as ${VAR} inside the file or picked up by the
// override pass in applyEnv.
type Config struct {
	// Channels maps a channel identifier ("web", "telegram") to its raw
	// configuration payload.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM holds the list of provider groups in raw JSON. When empty, a
	// single OpenAI group is derived from OPENAI_API_KEY / OPENAI_LLM.
	LLM jsoniter.RawMessage `json:"llm"`
	// Shopify configures the commerce backend adapter.
	Shopify ShopifyConfig `json:"shopify"`
	// Speech configures text-to-speech and transcription.
	Speech SpeechConfig `json:"speech"`
}

// ShopifyConfig describes how to reach the Shopify Admin REST API.
type ShopifyConfig struct {
	ShopURL     string `json:"shop_url"`
	APIVersion  string `json:"api_version"`
	AccessToken string `json:"access_token"`
	// InsecureSkipVerify disables TLS certificate validation on the
	// Shopify transport. Unset means true; set it to false explicitly
	// for production stores.
	InsecureSkipVerify *bool `json:"insecure_skip_verify,omitempty"`
}

// SkipVerify resolves InsecureSkipVerify with its default.
func (s ShopifyConfig) SkipVerify() bool {
	if s.InsecureSkipVerify == nil {
		return true
	}
	return *s.InsecureSkipVerify
}

// SpeechConfig describes the OpenAI audio models.
type SpeechConfig struct {
	APIKey             string `json:"api_key"`
	BaseURL            string `json:"base_url,omitempty"`
	Voice              string `json:"voice"`
	SpeechModel        string `json:"speech_model"`
	TranscriptionModel string `json:"transcription_model"`
	Language           string `json:"language"`
}

// Validate ensures the configuration can drive the assistant.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing; set OPENAI_API_KEY or add an 'llm' section")
	}
	if c.Shopify.ShopURL == "" {
		return fmt.Errorf("shopify shop_url is missing; set SHOPIFY_SHOP_URL")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters stored in
// system.json. Every field has a usable default.
type SystemConfig struct {
	// MaxToolIterations bounds the number of model rounds a single user
	// turn may take. Exceeding it ends the request with an explicit error.
	MaxToolIterations int `json:"max_tool_iterations"`
	// SessionScope is "session" (state per caller-supplied session id)
	// or "global" (one shared transcript and memory, last writer wins).
	SessionScope string `json:"session_scope"`
	// FollowUpAfterTool asks the model to phrase the outcome of a tool
	// call that has no templated answer. When false, a fixed
	// "Executed '<tool>' successfully." sentence is returned instead.
	FollowUpAfterTool bool `json:"follow_up_after_tool"`
	// MaxRetries is the number of attempts per provider when several
	// providers are configured as fallbacks. 1 means no retry.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the wait between attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs caps a whole model round trip.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// HTTPTimeoutMs caps a single commerce backend request.
	HTTPTimeoutMs int `json:"http_timeout_ms"`
	// TelegramMessageLimit is the maximum character count per Telegram
	// message bubble.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// LogLevel accepts "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
	// DebugLLM dumps every provider request and response under debug/llm.
	DebugLLM bool `json:"debug_llm"`
}

// DefaultSystemConfig returns the fallback used when system.json is
// missing or corrupt.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxToolIterations:    5,
		SessionScope:         ScopeSession,
		FollowUpAfterTool:    true,
		MaxRetries:           1,
		RetryDelayMs:         500,
		LLMTimeoutMs:         120000,
		HTTPTimeoutMs:        30000,
		TelegramMessageLimit: 4000,
		LogLevel:             "info",
	}
}

// Normalize repairs out-of-range values in place.
func (s *SystemConfig) Normalize() {
	def := DefaultSystemConfig()
	if s.MaxToolIterations <= 0 {
		s.MaxToolIterations = def.MaxToolIterations
	}
	s.SessionScope = strings.ToLower(strings.TrimSpace(s.SessionScope))
	if s.SessionScope != ScopeGlobal {
		s.SessionScope = ScopeSession
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = def.MaxRetries
	}
	if s.LLMTimeoutMs <= 0 {
		s.LLMTimeoutMs = def.LLMTimeoutMs
	}
	if s.HTTPTimeoutMs <= 0 {
		s.HTTPTimeoutMs = def.HTTPTimeoutMs
	}
	if s.TelegramMessageLimit <= 0 {
		s.TelegramMessageLimit = def.TelegramMessageLimit
	}
}

// Load reads .env (if present), config.json and system.json from dir.
// A missing config.json is not fatal: the environment alone can supply
// everything the assistant needs.
func Load(dir string) (*Config, *SystemConfig, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	var cfg Config
	appPath := filepath.Join(dir, "config.json")
	if raw, err := os.ReadFile(appPath); err == nil {
		expanded := os.ExpandEnv(string(raw))
		if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", appPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to read %s: %w", appPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, LoadSystemConfig(filepath.Join(dir, "system.json")), nil
}

// LoadSystemConfig loads system settings, falling back to defaults.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(file, cfg); err != nil {
		slog.Warn("Invalid system config, using defaults", "file", path, "error", err)
		return DefaultSystemConfig()
	}
	cfg.Normalize()
	return cfg
}

// applyEnv fills defaults and lets environment variables override file values.
func applyEnv(cfg *Config) error {
	sp := &cfg.Shopify
	sp.ShopURL = envOr("SHOPIFY_SHOP_URL", sp.ShopURL)
	sp.APIVersion = envOr("SHOPIFY_API_VERSION", sp.APIVersion)
	sp.AccessToken = envOr("SHOPIFY_API_ACCESS_TOKEN", sp.AccessToken)
	if sp.APIVersion == "" {
		sp.APIVersion = "2023-10"
	}
	sp.ShopURL = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(sp.ShopURL, "https://"), "http://"), "/")

	sc := &cfg.Speech
	sc.APIKey = envOr("OPENAI_API_KEY", sc.APIKey)
	sc.Voice = envOr("VOICE", sc.Voice)
	sc.SpeechModel = envOr("SPEECH_MODEL", sc.SpeechModel)
	sc.TranscriptionModel = envOr("TRANSCRIPTION_MODEL", sc.TranscriptionModel)
	if sc.Voice == "" {
		sc.Voice = "alloy"
	}
	if sc.SpeechModel == "" {
		sc.SpeechModel = "gpt-4o-mini-tts"
	}
	if sc.TranscriptionModel == "" {
		sc.TranscriptionModel = "gpt-4o-transcribe"
	}
	if sc.Language == "" {
		sc.Language = "en"
	}

	if len(cfg.LLM) == 0 {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil
		}
		model := envOr("OPENAI_LLM", "gpt-3.5-turbo")
		raw, err := json.Marshal([]map[string]any{{
			"type":     "openai",
			"api_keys": []string{key},
			"models":   []string{model},
		}})
		if err != nil {
			return fmt.Errorf("failed to build default llm config: %w", err)
		}
		cfg.LLM = raw
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
