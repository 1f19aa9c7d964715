package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jdelaire/pollbot/adapters/telegram"
	"github.com/jdelaire/pollbot/core"
	"github.com/jdelaire/pollbot/core/commands"
	"github.com/jdelaire/pollbot/core/policy"
	"github.com/jdelaire/pollbot/internal/config"
	"github.com/jdelaire/pollbot/internal/sentryutil"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll for updates and answer commands until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		token, err := cfg.ResolveToken()
		if err != nil {
			return fmt.Errorf("resolving token: %w", err)
		}

		logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, verbose)

		if err := sentryutil.Init(sentryutil.Options{
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     cfg.Sentry.Release,
		}, logger); err != nil {
			logger.Warn("error tracking unavailable", "error", err)
		}
		defer sentryutil.Flush()

		client := telegram.New(token, logger).WithBaseURL(cfg.BaseURL)

		registry := commands.NewRegistry()
		if err := commands.RegisterBuiltins(registry); err != nil {
			return fmt.Errorf("registering commands: %w", err)
		}
		router := commands.NewRouter(registry, client, logger).WithFallback(commands.AckCommand{})

		var handler core.Handler = router
		handler = policy.Middleware(policy.New(cfg.AllowedChats), handler, logger)
		handler = sentryutil.Recover(handler, logger)

		poller := core.NewPoller(client, handler,
			core.WithLimit(cfg.Limit),
			core.WithTimeout(cfg.Timeout),
			core.WithHandlerTimeout(cfg.HandlerTimeout),
			core.WithRetryDelay(cfg.RetryDelay),
			core.WithLogger(logger),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return poller.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
