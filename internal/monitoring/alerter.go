package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPipelineFailureRate AlertType = "pipeline_failure_rate"
	AlertStaleRunningJobs    AlertType = "stale_running_jobs"
)

// minFinishedForFailureRate keeps a single early failure in a lightly-used
// pipeline from tripping the failure-rate alert on its own.
const minFinishedForFailureRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, m := range snap.Pipelines {
		finished := m.Completed + m.CompletedWithErr + m.Failed
		if finished < minFinishedForFailureRate {
			continue
		}
		if m.FailRate <= a.cfg.FailureRateThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertPipelineFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				m.Pipeline, m.FailRate*100, a.cfg.FailureRateThreshold*100,
				m.Failed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"pipeline":     m.Pipeline,
				"failure_rate": m.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       m.Failed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.StaleRunning > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStaleRunningJobs,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d job run(s) have been stuck in running status past %s",
				snap.StaleRunning, staleAfter,
			),
			Details: map[string]any{
				"stale_running": snap.StaleRunning,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
