package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowpulse/flowpulse/internal/api"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/engine"
	"github.com/flowpulse/flowpulse/internal/events"
	"github.com/flowpulse/flowpulse/internal/provider"
	"github.com/flowpulse/flowpulse/internal/pulse"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher engine and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	feed := provider.NewGuarded(
		provider.NewHTTPFeed(cfg.Feed.BaseURL, nil),
		cfg.Feed.GuardedConfig,
	)

	var external events.Publisher
	if cfg.Redis.Enabled {
		rp, err := events.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer rp.Close()
		external = rp
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).
			Msg("redis event publishing enabled")
	}

	bus := events.NewBus(external)
	metrics := telemetry.NewRegistry()
	eng := engine.New(cfg.Engine, cfg.Flow, feed, pulse.NewManager(), bus, metrics)
	defer eng.Close()

	for _, instrument := range cfg.Engine.Instruments {
		if err := eng.Watch(ctx, instrument); err != nil {
			return err
		}
	}
	if len(cfg.Engine.Instruments) == 0 {
		log.Warn().Msg("no instruments configured; API is up but nothing is polling")
	}

	srv := api.NewServer(cfg.Server, eng, metrics)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
