package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"transbot/pkg/bus"
	"transbot/pkg/channel"
	"transbot/pkg/config"
	"transbot/pkg/language"
	"transbot/pkg/provider"
	"transbot/pkg/relay"
)

const localChannel = "console"

// localRelay feeds terminal input through the same relay handler the chat
// channels use and collects whatever it would have sent back.
type localRelay struct {
	handler *relay.Handler
	seq     atomic.Int64
}

func newLocalRelay(ctx context.Context, cfg *config.Config, log *slog.Logger) (*localRelay, error) {
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}

	client, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("provider health check failed: %w", err)
	}

	commands, err := builtinCommands(cfg.Commands.Prefix)
	if err != nil {
		return nil, err
	}

	handler, err := relay.NewHandler(
		language.NewDetector(client, cfg.ModelName()),
		language.NewTranslator(client, cfg.ModelName()),
		relay.WithCommands(commands),
		relay.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	return &localRelay{handler: handler}, nil
}

// Reply runs text through the relay and returns every reply in send order.
func (r *localRelay) Reply(ctx context.Context, text string) ([]string, error) {
	sender := &collectingSender{}
	msg := bus.InboundMessage{
		Channel:   localChannel,
		ChatID:    localChannel,
		SenderID:  "local",
		MessageID: strconv.FormatInt(r.seq.Add(1), 10),
		Content:   text,
	}

	err := r.handler.Handle(ctx, msg, sender)
	return sender.Replies(), err
}

type collectingSender struct {
	mu      sync.Mutex
	replies []string
}

var _ channel.Sender = (*collectingSender)(nil)

func (s *collectingSender) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, text)
	return nil
}

func (s *collectingSender) Replies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.replies...)
}
