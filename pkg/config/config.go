package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath = "TRANSBOT_CONFIG"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderFantasy   = "fantasy"

	// DefaultModel is used with the openai and fantasy providers when
	// model.name is empty; DefaultAnthropicModel with anthropic.
	DefaultModel          = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultCommandPrefix  = "!"
)

// Config is the root runtime configuration.
type Config struct {
	Model     ModelConfig     `json:"model" yaml:"model"`
	Channels  ChannelsConfig  `json:"channels" yaml:"channels"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Commands  CommandsConfig  `json:"commands" yaml:"commands"`
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// ModelConfig selects the model service and the fixed model identifier used
// for both detection and translation.
type ModelConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Name     string `json:"name" yaml:"name"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenAI    OpenAIProviderConfig    `json:"openai" yaml:"openai"`
	Anthropic AnthropicProviderConfig `json:"anthropic" yaml:"anthropic"`
}

// OpenAIProviderConfig configures the OpenAI client. The fantasy provider
// reuses it since it talks to the same API.
type OpenAIProviderConfig struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	Organization          string `json:"organization" yaml:"organization"`
	Project               string `json:"project" yaml:"project"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// AnthropicProviderConfig configures the Anthropic client.
type AnthropicProviderConfig struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	MaxTokens             int    `json:"max_tokens" yaml:"max_tokens"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// DiscordConfig configures the Discord bot connection.
type DiscordConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Token      string   `json:"token" yaml:"token"`
	IgnoreBots bool     `json:"ignore_bots" yaml:"ignore_bots"`
	AllowFrom  []string `json:"allow_from" yaml:"allow_from"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from"`
}

// CommandsConfig configures the prefix command dispatcher.
type CommandsConfig struct {
	Prefix string `json:"prefix" yaml:"prefix"`
}

// GatewayConfig configures the status server bind settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// envOverrides lists every environment variable that can override file config.
type envOverrides struct {
	DiscordBotToken   string   `env:"DISCORD_BOT_TOKEN"`
	TelegramBotToken  string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom []string `env:"TELEGRAM_ALLOW_FROM" envSeparator:","`
	OpenAIAPIKey      string   `env:"OPENAI_API_KEY"`
	AnthropicAPIKey   string   `env:"ANTHROPIC_API_KEY"`
	Provider          string   `env:"TRANSBOT_PROVIDER"`
	Model             string   `env:"TRANSBOT_MODEL"`
}

// Default returns the configuration used when no file is present: Discord
// with the OpenAI provider and its default model.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: ProviderOpenAI,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{Enabled: true, IgnoreBots: true},
		},
		Commands: CommandsConfig{Prefix: DefaultCommandPrefix},
	}
}

// LoadConfig resolves an optional config file on top of Default and applies
// environment overrides. It does not validate; see Validate.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := decodeFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	}

	return nil
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	setIfPresent(&cfg.Channels.Discord.Token, overrides.DiscordBotToken)
	setIfPresent(&cfg.Channels.Telegram.Token, overrides.TelegramBotToken)
	setIfPresent(&cfg.Providers.OpenAI.APIKey, overrides.OpenAIAPIKey)
	setIfPresent(&cfg.Providers.Anthropic.APIKey, overrides.AnthropicAPIKey)
	setIfPresent(&cfg.Model.Provider, overrides.Provider)
	setIfPresent(&cfg.Model.Name, overrides.Model)

	if allowFrom := compact(overrides.TelegramAllowFrom); len(allowFrom) > 0 {
		cfg.Channels.Telegram.AllowFrom = allowFrom
	}

	return nil
}

func setIfPresent(target *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*target = trimmed
	}
}

// compact trims values and drops empty ones.
func compact(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// TRANSBOT_CONFIG wins and must point at a file. Otherwise cwd-local
// candidates are probed; finding none is fine and yields "".
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
