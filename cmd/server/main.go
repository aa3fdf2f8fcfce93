package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/formrelay-server/internal/app"
	"github.com/vovakirdan/formrelay-server/internal/config"
	logpkg "github.com/vovakirdan/formrelay-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "formrelay",
		Short:         "Form submission relay: HTTP intake, TCP relay, document store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(
		newServeCmd("intake", "Run the HTTP intake server", &configPath, runIntake),
		newServeCmd("relay", "Run the TCP relay listener", &configPath, runRelay),
		newServeCmd("all", "Run intake and relay in one process", &configPath, app.RunAll),
	)

	return root
}

type runFunc func(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error

func newServeCmd(name, short string, configPath *string, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional; real deployments set the environment.
			_ = godotenv.Load()

			bootLog := logpkg.New("info")
			cfg, path, err := config.Load(bootLog, *configPath)
			if err != nil {
				return err
			}

			logger := logpkg.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("service", name).Msg("starting")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("service exited with error")
				return err
			}
			logger.Info().Msg("service stopped")
			return nil
		},
	}
}

func runIntake(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	return app.NewIntake(cfg, logger).Run(ctx)
}

func runRelay(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	rel, err := app.NewRelay(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return rel.Run(ctx)
}
