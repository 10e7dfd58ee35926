package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"transbot/pkg/config"
	"transbot/pkg/logger"

	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Run one message through the bot and print its replies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)

		local, err := newLocalRelay(cmd.Context(), cfg, appLogger)
		if err != nil {
			return err
		}

		replies, err := local.Reply(cmd.Context(), strings.Join(args, " "))
		for _, reply := range replies {
			fmt.Fprintln(cmd.OutOrStdout(), reply)
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)
}
