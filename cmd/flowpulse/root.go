package main

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the flowpulse CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "flowpulse",
		Short: "Market flow intelligence engine",
		Long:  "Converts periodic market snapshots into factor scores, flow regimes, pulse signals and price scenarios.",
	}

	root.PersistentFlags().String("config", "", "path to YAML config (defaults apply when omitted)")

	root.AddCommand(serveCmd())
	root.AddCommand(analyzeCmd())
	return root.ExecuteContext(ctx)
}
