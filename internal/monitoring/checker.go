package monitoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/config"
)

// Checker runs a single alert check: collect the current per-pipeline
// metrics snapshot, evaluate it against thresholds, and deliver any
// triggered alerts. Run as a one-shot `cmd jobs check` invocation by an
// external scheduler, matching every other pipeline's one-shot model (§5)
// rather than a long-lived ticker loop.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates an alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Check collects the current snapshot, evaluates it, and sends any
// triggered alerts, returning the snapshot and the alerts sent for the
// caller to log or exit-code on.
func (c *Checker) Check(ctx context.Context) (*MetricsSnapshot, []Alert, error) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackHours)
	if err != nil {
		return nil, nil, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return snap, nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap, alerts, nil
}
