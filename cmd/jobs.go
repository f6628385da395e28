package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/monitoring"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and alert on job-run health",
}

var jobsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Collect a job-run metrics snapshot and send any triggered alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		checker := monitoring.NewChecker(monitoring.NewCollector(env.Store), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)

		snap, alerts, err := checker.Check(ctx)
		if err != nil {
			return eris.Wrap(err, "jobs check")
		}

		for _, m := range snap.Pipelines {
			zap.L().Info("pipeline health",
				zap.String("pipeline", string(m.Pipeline)),
				zap.Int("total", m.Total),
				zap.Int("completed", m.Completed),
				zap.Int("completed_with_errors", m.CompletedWithErr),
				zap.Int("failed", m.Failed),
				zap.Int("running", m.Running),
				zap.Float64("fail_rate", m.FailRate),
			)
		}
		zap.L().Info("jobs check complete",
			zap.Int("stale_running", snap.StaleRunning),
			zap.Int("alerts_triggered", len(alerts)),
		)

		if len(alerts) > 0 {
			cmd.SilenceUsage = true
			return eris.Errorf("jobs check: %d alert(s) triggered", len(alerts))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsCheckCmd)
}
