package cmd

import (
	"context"
	"strings"

	"transbot/pkg/bus"
	"transbot/pkg/channel"
)

// builtinCommands registers the commands every transport answers.
func builtinCommands(prefix string) (*channel.Commands, error) {
	commands := channel.NewCommands(prefix)

	if err := commands.Register("ping", func(ctx context.Context, _ bus.InboundMessage, _ string, sender channel.Sender) error {
		return sender.Send(ctx, "pong")
	}); err != nil {
		return nil, err
	}

	if err := commands.Register("help", func(ctx context.Context, _ bus.InboundMessage, _ string, sender channel.Sender) error {
		return sender.Send(ctx, helpText(commands))
	}); err != nil {
		return nil, err
	}

	return commands, nil
}

func helpText(commands *channel.Commands) string {
	names := commands.Names()
	for i, name := range names {
		names[i] = commands.Prefix() + name
	}

	return "English messages are translated to Japanese; other languages are echoed with their detected code.\nCommands: " + strings.Join(names, ", ")
}
