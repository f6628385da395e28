package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/adsync"
	"github.com/sellsadvisors/fleet/internal/budgetopt"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run Pipeline E: scale or pause campaigns against optimization rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "optimize")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := budgetopt.NewRunner(env.Store, env.AdPlatform, env.Tokens)
		runner.Concurrency = cfg.Batch.MaxConcurrentTenants
		runner.Cleanup = adsync.NewRunner(env.Store, commerceFactory, env.AdPlatform, env.Tokens)

		summary, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "optimize run")
		}

		zap.L().Info("optimize complete",
			zap.Int64("tenants_processed", summary.TenantsProcessed),
			zap.Int64("tenants_failed", summary.TenantsFailed),
			zap.Int64("campaigns_evaluated", summary.CampaignsEvaluated),
			zap.Int64("campaigns_scaled", summary.CampaignsScaled),
			zap.Int64("campaigns_paused", summary.CampaignsPaused),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
