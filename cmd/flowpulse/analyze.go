package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowpulse/flowpulse/internal/domain/factors"
	"github.com/flowpulse/flowpulse/internal/domain/scenario"
	"github.com/flowpulse/flowpulse/internal/provider"
)

func analyzeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "One-shot factor, scenario and level analysis for an instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Engine.CandleLimit
			}

			feed := provider.NewGuarded(
				provider.NewHTTPFeed(cfg.Feed.BaseURL, nil),
				cfg.Feed.GuardedConfig,
			)

			candles, err := feed.Candles(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("fetch candles: %w", err)
			}

			report := struct {
				Instrument string                 `json:"instrument"`
				Candles    int                    `json:"candles"`
				Factors    factors.Scores         `json:"factors"`
				Scenarios  scenario.Probabilities `json:"scenarios"`
				Levels     scenario.KeyLevels     `json:"levels"`
			}{
				Instrument: args[0],
				Candles:    len(candles),
				Factors:    factors.Compute(candles),
				Scenarios:  scenario.FromCandles(candles),
				Levels:     scenario.Levels(candles),
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of candles to fetch (0 uses the configured default)")
	return cmd
}
