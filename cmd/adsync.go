package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/adsync"
)

var adsyncCmd = &cobra.Command{
	Use:   "adsync",
	Short: "Run Pipeline D: sync tracked collections into ad-platform pins and ads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "adsync")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := adsync.NewRunner(env.Store, commerceFactory, env.AdPlatform, env.Tokens)
		runner.Concurrency = cfg.Batch.MaxConcurrentTenants
		if cfg.AdSync.ProductsPerPage > 0 {
			runner.ProductsPerPage = cfg.AdSync.ProductsPerPage
		}
		if cfg.AdSync.MinPinIntervalMillis > 0 {
			runner.MinPinInterval = time.Duration(cfg.AdSync.MinPinIntervalMillis) * time.Millisecond
		}

		summary, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "adsync run")
		}

		zap.L().Info("adsync complete",
			zap.Int64("tenants_processed", summary.TenantsProcessed),
			zap.Int64("tenants_failed", summary.TenantsFailed),
			zap.Int64("pins_created", summary.PinsCreated),
			zap.Int64("ads_created", summary.AdsCreated),
			zap.Int64("ads_paused", summary.AdsPaused),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adsyncCmd)
}
