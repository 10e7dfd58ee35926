package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	unsetOverrideEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "model": {"provider": "anthropic", "name": "claude-sonnet-4-5"},
	  "channels": {"telegram": {"enabled": true, "token": "tg"}},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Model.Provider != ProviderAnthropic {
		t.Fatalf("model.provider = %q, want %q", cfg.Model.Provider, ProviderAnthropic)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" || !cfg.Logging.AddSource {
		t.Fatalf("logging = %+v, want json/debug/add_source", cfg.Logging)
	}
	if !cfg.Channels.Telegram.Enabled || cfg.Channels.Telegram.Token != "tg" {
		t.Fatalf("telegram = %+v, want enabled with token", cfg.Channels.Telegram)
	}
	if !cfg.Channels.Discord.Enabled {
		t.Fatal("expected discord default to survive a file that does not mention it")
	}
	if cfg.Commands.Prefix != DefaultCommandPrefix {
		t.Fatalf("commands.prefix = %q, want %q", cfg.Commands.Prefix, DefaultCommandPrefix)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	unsetOverrideEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
model:
  name: gpt-4o-mini
channels:
  discord:
    enabled: true
    ignore_bots: false
    allow_from: ["1", "2"]
commands:
  prefix: "?"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Model.Name != "gpt-4o-mini" {
		t.Fatalf("model.name = %q, want gpt-4o-mini", cfg.Model.Name)
	}
	if cfg.Model.Provider != ProviderOpenAI {
		t.Fatalf("model.provider = %q, want default %q", cfg.Model.Provider, ProviderOpenAI)
	}
	if cfg.Channels.Discord.IgnoreBots {
		t.Fatal("expected ignore_bots override to false")
	}
	if len(cfg.Channels.Discord.AllowFrom) != 2 {
		t.Fatalf("allow_from = %v, want 2 entries", cfg.Channels.Discord.AllowFrom)
	}
	if cfg.Commands.Prefix != "?" {
		t.Fatalf("commands.prefix = %q, want ?", cfg.Commands.Prefix)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigWithoutFileUsesDefaultsAndEnv(t *testing.T) {
	unsetOverrideEnv(t)
	t.Setenv(envConfigPath, "")
	t.Chdir(t.TempDir())

	t.Setenv("DISCORD_BOT_TOKEN", " discord-token ")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_ALLOW_FROM", " 1, ,2 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Channels.Discord.Token != "discord-token" {
		t.Fatalf("discord token = %q, want trimmed env value", cfg.Channels.Discord.Token)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Fatalf("openai api key = %q, want sk-test", cfg.Providers.OpenAI.APIKey)
	}
	if got := cfg.Channels.Telegram.AllowFrom; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("telegram allow_from = %v, want [1 2]", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidateRequiresBothSecrets(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error without secrets")
	}

	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %T", err)
	}

	cfg.Channels.Discord.Token = "token"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without model api key")
	}

	cfg.Providers.OpenAI.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "openai with key", mutate: func(c *Config) { c.Providers.OpenAI.APIKey = "k" }},
		{name: "empty provider defaults to openai", mutate: func(c *Config) {
			c.Model.Provider = ""
			c.Providers.OpenAI.APIKey = "k"
		}},
		{name: "fantasy uses openai key", mutate: func(c *Config) {
			c.Model.Provider = ProviderFantasy
			c.Providers.OpenAI.APIKey = "k"
		}},
		{name: "anthropic without key", mutate: func(c *Config) {
			c.Model.Provider = ProviderAnthropic
			c.Providers.OpenAI.APIKey = "k"
		}, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Model.Provider = "bogus" }, wantErr: true},
		{name: "empty model uses provider default", mutate: func(c *Config) {
			c.Providers.OpenAI.APIKey = "k"
			c.Model.Name = " "
		}},
		{name: "anthropic with its default model", mutate: func(c *Config) {
			c.Model.Provider = ProviderAnthropic
			c.Providers.Anthropic.APIKey = "k"
		}},
		{name: "anthropic with openai model", mutate: func(c *Config) {
			c.Model.Provider = ProviderAnthropic
			c.Model.Name = DefaultModel
			c.Providers.Anthropic.APIKey = "k"
		}, wantErr: true},
		{name: "fantasy with claude model", mutate: func(c *Config) {
			c.Model.Provider = ProviderFantasy
			c.Model.Name = "anthropic/claude-sonnet-4-5"
			c.Providers.OpenAI.APIKey = "k"
		}, wantErr: true},
		{name: "unknown model family is allowed", mutate: func(c *Config) {
			c.Model.Name = "llama-3.1-70b"
			c.Providers.OpenAI.APIKey = "k"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.ValidateProvider(); (err != nil) != tt.wantErr {
				t.Fatalf("ValidateProvider error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelNameDefaultsPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		name     string
		want     string
	}{
		{provider: "", want: DefaultModel},
		{provider: ProviderOpenAI, want: DefaultModel},
		{provider: ProviderFantasy, want: DefaultModel},
		{provider: ProviderAnthropic, want: DefaultAnthropicModel},
		{provider: " Anthropic ", want: DefaultAnthropicModel},
		{provider: ProviderAnthropic, name: " claude-opus-4-1 ", want: "claude-opus-4-1"},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Model = ModelConfig{Provider: tt.provider, Name: tt.name}
		if got := cfg.ModelName(); got != tt.want {
			t.Fatalf("ModelName() provider=%q name=%q = %q, want %q", tt.provider, tt.name, got, tt.want)
		}
	}
}

func TestLoadConfigAnthropicWithoutModelOverride(t *testing.T) {
	unsetOverrideEnv(t)
	t.Setenv("TRANSBOT_CONFIG", "")
	t.Chdir(t.TempDir())
	t.Setenv("TRANSBOT_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if err := cfg.ValidateProvider(); err != nil {
		t.Fatalf("ValidateProvider error: %v", err)
	}
	if got := cfg.ModelName(); got != DefaultAnthropicModel {
		t.Fatalf("ModelName() = %q, want %q", got, DefaultAnthropicModel)
	}
}

func TestValidateChannelsRequiresOneEnabled(t *testing.T) {
	cfg := Default()
	cfg.Channels.Discord.Enabled = false

	if err := cfg.ValidateChannels(); err == nil {
		t.Fatal("expected error when no channels are enabled")
	}

	cfg.Channels.Telegram = TelegramConfig{Enabled: true, Token: "t"}
	if err := cfg.ValidateChannels(); err != nil {
		t.Fatalf("ValidateChannels error: %v", err)
	}
}

func unsetOverrideEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DISCORD_BOT_TOKEN", "TELEGRAM_BOT_TOKEN", "TELEGRAM_ALLOW_FROM",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "TRANSBOT_PROVIDER", "TRANSBOT_MODEL",
	} {
		t.Setenv(name, "")
	}
}
