package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/winnerscaler"
)

var winnersCmd = &cobra.Command{
	Use:   "winners",
	Short: "Run Pipeline F: generate creatives and campaigns for winning products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "winners")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := winnerscaler.NewRunner(env.Store, commerceFactory, env.AdPlatform, env.AICreative, env.ObjectStore,
			cfg.ObjectStore.Bucket, env.Tokens)
		runner.Concurrency = cfg.Batch.MaxConcurrentTenants
		runner.Prompts = env.Prompts

		summary, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "winners run")
		}

		zap.L().Info("winners complete",
			zap.Int64("tenants_processed", summary.TenantsProcessed),
			zap.Int64("tenants_failed", summary.TenantsFailed),
			zap.Int64("winners_identified", summary.WinnersIdentified),
			zap.Int64("campaigns_created", summary.CampaignsCreated),
			zap.Int64("api_limit_reached", summary.ApiLimitReached),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(winnersCmd)
}
