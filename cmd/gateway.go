package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"transbot/pkg/channel"
	"transbot/pkg/channel/discord"
	"transbot/pkg/channel/telegram"
	"transbot/pkg/config"
	"transbot/pkg/gateway"
	"transbot/pkg/logger"

	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the bot on every enabled channel",
	Long:  "Runs transbot on the enabled chat channels with health, readiness and metrics endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.gateway")

		if err := cfg.Validate(); err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		adapters, err := enabledAdapters(cfg, appLogger)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		commands, err := builtinCommands(cfg.Commands.Prefix)
		if err != nil {
			return err
		}

		svc, err := gateway.NewService(cfg, adapters, commands, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "provider", cfg.ProviderID(), "model", cfg.ModelName())
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("Gateway runtime failed", "error", err)
			return err
		}

		log.Info("Gateway stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 2)

	if cfg.Channels.Discord.Enabled {
		adapter, err := discord.NewAdapter(cfg.Channels.Discord, log)
		if err != nil {
			return nil, fmt.Errorf("configure discord channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure telegram channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, &config.Error{Field: "channels", Detail: "no channels are enabled"}
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
