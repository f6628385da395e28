package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/replacement"
)

var replaceCmd = &cobra.Command{
	Use:   "replace",
	Short: "Run Pipeline C: replace underperforming products in tracked collections",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "replace")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := replacement.NewRunner(env.Store, commerceFactory)
		runner.Concurrency = cfg.Batch.MaxConcurrentTenants

		summary, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "replace run")
		}

		zap.L().Info("replace complete",
			zap.Int64("tenants_processed", summary.TenantsProcessed),
			zap.Int64("tenants_failed", summary.TenantsFailed),
			zap.Int64("products_evaluated", summary.ProductsEvaluated),
			zap.Int64("replacements", summary.Replacements),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replaceCmd)
}
