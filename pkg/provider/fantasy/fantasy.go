package fantasy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	core "charm.land/fantasy"
	provideropenai "charm.land/fantasy/providers/openai"
	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"transbot/pkg/config"
	providertypes "transbot/pkg/provider/types"
)

const providerName = "fantasy"

type languageModelProvider interface {
	LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error)
}

type generateFunc func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error)

// noRetries is passed on every agent call; fantasy retries 408/409/429
// twice by default.
var noRetries = 0

// Client runs each request as a one-turn fantasy agent over the OpenAI API.
type Client struct {
	provider       languageModelProvider
	requestTimeout time.Duration
	generate       generateFunc
	ping           func(ctx context.Context) error
}

func New(cfg config.OpenAIProviderConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &config.Error{Field: "providers.openai.api_key", Detail: "is required (set OPENAI_API_KEY)"}
	}

	providerOptions := []provideropenai.Option{provideropenai.WithAPIKey(apiKey)}
	sdkOptions := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		providerOptions = append(providerOptions, provideropenai.WithBaseURL(baseURL))
		sdkOptions = append(sdkOptions, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		providerOptions = append(providerOptions, provideropenai.WithOrganization(organization))
		sdkOptions = append(sdkOptions, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		providerOptions = append(providerOptions, provideropenai.WithProject(project))
		sdkOptions = append(sdkOptions, option.WithProject(project))
	}

	fantasyProvider, err := provideropenai.New(providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize fantasy openai provider: %w", err)
	}

	// Resolving a fantasy language model never touches the network, so health
	// lists models through the SDK with the same credentials and endpoint.
	sdk := osdk.NewClient(sdkOptions...)

	return &Client{
		provider:       fantasyProvider,
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		generate:       generateWithFantasyAgent,
		ping: func(ctx context.Context) error {
			_, err := sdk.Models.List(ctx)
			return err
		},
	}, nil
}

// Health lists the models visible to the configured key.
func (c *Client) Health(ctx context.Context) error {
	if c.ping == nil {
		return errors.New("fantasy client has no health endpoint")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return wrapError("health", err)
	}

	return nil
}

func (c *Client) Complete(ctx context.Context, request providertypes.Request) (providertypes.Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	modelID, err := normalizeOpenAIModel(request.Model)
	if err != nil {
		return providertypes.Result{}, err
	}

	languageModel, err := c.provider.LanguageModel(ctx, modelID)
	if err != nil {
		return providertypes.Result{}, wrapError("resolve_model", err)
	}

	call := core.AgentCall{Prompt: request.Input, MaxRetries: &noRetries}
	if request.Instructions != "" {
		call.Messages = []core.Message{{
			Role:    core.MessageRoleSystem,
			Content: []core.MessagePart{core.TextPart{Text: request.Instructions}},
		}}
	}

	generate := c.generate
	if generate == nil {
		generate = generateWithFantasyAgent
	}

	result, err := generate(ctx, languageModel, call)
	if err != nil {
		return providertypes.Result{}, wrapError("complete", err)
	}
	if result == nil {
		return providertypes.Result{}, &providertypes.Error{
			Provider:  providerName,
			Operation: "complete",
			Kind:      providertypes.KindMalformed,
			Err:       errors.New("agent returned no result"),
		}
	}

	metadata := providertypes.Metadata{Provider: providerName, Model: modelID}
	usage := providertypes.TokenUsage{
		InputTokens:  result.TotalUsage.InputTokens,
		OutputTokens: result.TotalUsage.OutputTokens,
		TotalTokens:  result.TotalUsage.TotalTokens,
	}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.Result{Text: extractText(result.Response.Content), Metadata: metadata}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

// wrapError keeps the HTTP status of fantasy and SDK errors so auth and
// request failures are not mistaken for transport ones. errors.As also
// reaches through *core.RetryError to its last attempt.
func wrapError(operation string, err error) error {
	statusCode := 0
	var providerErr *core.ProviderError
	var apiErr *osdk.Error
	switch {
	case errors.As(err, &providerErr):
		statusCode = providerErr.StatusCode
	case errors.As(err, &apiErr):
		statusCode = apiErr.StatusCode
	}

	return providertypes.NewError(providerName, operation, statusCode, err)
}

func normalizeOpenAIModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 {
		return model, nil
	}

	providerID := strings.TrimSpace(parts[0])
	modelID := strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", errors.New("model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by fantasy openai provider", providerID)
	}

	return modelID, nil
}

// extractText concatenates text parts as returned, without trimming.
func extractText(content core.ResponseContent) string {
	var text strings.Builder
	for _, part := range content {
		if part.GetType() != core.ContentTypeText {
			continue
		}

		textPart, ok := core.AsContentType[core.TextContent](part)
		if !ok {
			continue
		}
		text.WriteString(textPart.Text)
	}

	return text.String()
}

func generateWithFantasyAgent(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
	return core.NewAgent(model, core.WithMaxRetries(noRetries)).Generate(ctx, call)
}
