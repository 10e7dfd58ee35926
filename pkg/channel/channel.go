package channel

import (
	"context"

	"transbot/pkg/bus"
)

// Sender delivers one reply text to the channel a message came from.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, text string) error

func (f SenderFunc) Send(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Handler processes one inbound channel message. Replies go through sender;
// a returned error means the handler could not reply at all.
type Handler func(context.Context, bus.InboundMessage, Sender) error

// Adapter bridges one external transport (for example Discord) into transbot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
