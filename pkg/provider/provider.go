package provider

import (
	"context"
	"fmt"
	"log/slog"

	"transbot/pkg/config"
	provideranthropic "transbot/pkg/provider/anthropic"
	providerfantasy "transbot/pkg/provider/fantasy"
	provideropenai "transbot/pkg/provider/openai"
	providertypes "transbot/pkg/provider/types"
)

// Client is a handle on one model service. Implementations are safe for
// concurrent use and hold no per-conversation state.
type Client interface {
	Health(ctx context.Context) error
	Complete(ctx context.Context, request providertypes.Request) (providertypes.Result, error)
}

// New constructs the client selected by cfg.Model.Provider.
func New(cfg *config.Config) (Client, error) {
	providerID := cfg.ProviderID()

	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID)

	switch providerID {
	case config.ProviderOpenAI:
		client, err := provideropenai.New(cfg.Providers.OpenAI)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderAnthropic:
		client, err := provideranthropic.New(cfg.Providers.Anthropic)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderFantasy:
		client, err := providerfantasy.New(cfg.Providers.OpenAI)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, &config.Error{Field: "model.provider", Detail: fmt.Sprintf("unsupported provider %q", providerID)}
	}
}
