package cmd

import (
	"fmt"
	"log/slog"

	"transbot/pkg/config"
	"transbot/pkg/ui/console"

	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot in an interactive terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Log output would tear the full-screen view; replies and errors are
		// rendered in the transcript instead.
		quiet := slog.New(slog.DiscardHandler)
		slog.SetDefault(quiet)

		local, err := newLocalRelay(cmd.Context(), cfg, quiet)
		if err != nil {
			return err
		}

		return console.Run(cmd.Context(), local.Reply, console.Info{
			Provider: cfg.ProviderID(),
			Model:    cfg.ModelName(),
			Prefix:   cfg.Commands.Prefix,
		})
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
