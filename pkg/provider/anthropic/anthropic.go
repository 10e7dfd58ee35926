package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"transbot/pkg/config"
	providertypes "transbot/pkg/provider/types"

	asdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	providerName     = "anthropic"
	defaultMaxTokens = 1024
)

type Client struct {
	client         asdk.Client
	maxTokens      int64
	requestTimeout time.Duration
}

func New(cfg config.AnthropicProviderConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &config.Error{Field: "providers.anthropic.api_key", Detail: "is required (set ANTHROPIC_API_KEY)"}
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		client:         asdk.NewClient(opts...),
		maxTokens:      maxTokens,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("provider request started")

	if _, err := c.client.Models.List(ctx, asdk.ModelListParams{}); err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return wrapError("health", err)
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

// Complete sends request.Instructions as the system block and request.Input
// as the single user turn. Text blocks of the reply are concatenated.
func (c *Client) Complete(ctx context.Context, request providertypes.Request) (providertypes.Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "complete")
	startedAt := time.Now()

	model, err := normalizeModel(request.Model)
	if err != nil {
		return providertypes.Result{}, err
	}
	log.Debug("provider request started", "model", model, "input_length", len(request.Input))

	params := asdk.MessageNewParams{
		Model:     asdk.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []asdk.MessageParam{
			asdk.NewUserMessage(asdk.NewTextBlock(request.Input)),
		},
	}
	if request.Instructions != "" {
		params.System = []asdk.TextBlockParam{{Text: request.Instructions}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.Result{}, wrapError("complete", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", text.Len())

	metadata := providertypes.Metadata{Provider: providerName, Model: model}
	usage := providertypes.TokenUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
		TotalTokens:  message.Usage.InputTokens + message.Usage.OutputTokens,
	}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.Result{Text: text.String(), Metadata: metadata}, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.anthropic")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func wrapError(operation string, err error) error {
	statusCode := 0
	var apiErr *asdk.Error
	if errors.As(err, &apiErr) {
		statusCode = apiErr.StatusCode
	}

	return providertypes.NewError(providerName, operation, statusCode, err)
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	return strings.TrimSpace(strings.TrimPrefix(model, providerName+"/")), nil
}
