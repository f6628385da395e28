// Package main implements the fleet command-line tool: one subcommand per
// pipeline (B-F; Pipeline A is the job-run ledger they all write to), plus a
// jobs-health check, each a one-shot invocation
// meant to be driven by an external scheduler (§5).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Print-on-demand ad fleet orchestrator",
	Long:  "Tracks product sales, replaces underperforming campaign targets, syncs new products to the ad platform, optimizes budgets against rules, and scales winning products into new creatives.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
