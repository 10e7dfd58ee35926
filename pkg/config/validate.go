package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error reports one invalid or missing configuration value.
type Error struct {
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

func missing(field string, envName string) error {
	return &Error{Field: field, Detail: "is required (set " + envName + ")"}
}

// Validate checks everything the gateway needs before it may start: at least
// one enabled channel with its token, and model-service credentials.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateChannels(), c.ValidateProvider())
}

// ValidateChannels checks transport settings only.
func (c *Config) ValidateChannels() error {
	var errs []error

	if !c.Channels.Discord.Enabled && !c.Channels.Telegram.Enabled {
		errs = append(errs, &Error{Field: "channels", Detail: "no channels are enabled"})
	}
	if c.Channels.Discord.Enabled && strings.TrimSpace(c.Channels.Discord.Token) == "" {
		errs = append(errs, missing("channels.discord.token", "DISCORD_BOT_TOKEN"))
	}
	if c.Channels.Telegram.Enabled && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		errs = append(errs, missing("channels.telegram.token", "TELEGRAM_BOT_TOKEN"))
	}

	return errors.Join(errs...)
}

// ValidateProvider checks the model provider selection and its credentials.
func (c *Config) ValidateProvider() error {
	var errs []error

	switch c.ProviderID() {
	case ProviderOpenAI, ProviderFantasy:
		if strings.TrimSpace(c.Providers.OpenAI.APIKey) == "" {
			errs = append(errs, missing("providers.openai.api_key", "OPENAI_API_KEY"))
		}
	case ProviderAnthropic:
		if strings.TrimSpace(c.Providers.Anthropic.APIKey) == "" {
			errs = append(errs, missing("providers.anthropic.api_key", "ANTHROPIC_API_KEY"))
		}
	default:
		errs = append(errs, &Error{Field: "model.provider", Detail: fmt.Sprintf("unsupported provider %q", c.Model.Provider)})
		return errors.Join(errs...)
	}

	if family := modelFamily(c.ModelName()); family != "" && family != providerFamily(c.ProviderID()) {
		errs = append(errs, &Error{
			Field:  "model.name",
			Detail: fmt.Sprintf("%q is a %s model and cannot be served by provider %q (set TRANSBOT_MODEL)", c.ModelName(), family, c.ProviderID()),
		})
	}

	return errors.Join(errs...)
}

// ModelName returns model.name, or the selected provider's default model
// when it is empty.
func (c *Config) ModelName() string {
	if name := strings.TrimSpace(c.Model.Name); name != "" {
		return name
	}

	if c.ProviderID() == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultModel
}

// modelFamily recognizes the vendor of well-known model ids; "" means unknown,
// which is let through so self-hosted compatible endpoints keep working.
func modelFamily(model string) string {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "openai/"), strings.HasPrefix(model, "gpt-"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude"):
		return ProviderAnthropic
	default:
		return ""
	}
}

func providerFamily(providerID string) string {
	if providerID == ProviderFantasy {
		return ProviderOpenAI
	}
	return providerID
}

// ProviderID returns the normalized provider name, defaulting to openai.
func (c *Config) ProviderID() string {
	providerID := strings.ToLower(strings.TrimSpace(c.Model.Provider))
	if providerID == "" {
		return ProviderOpenAI
	}

	return providerID
}
