package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/store"
)

// PipelineMetrics holds the run counts for a single pipeline within a
// lookback window.
type PipelineMetrics struct {
	Pipeline         model.PipelineName `json:"pipeline"`
	Total            int                `json:"total"`
	Completed        int                `json:"completed"`
	CompletedWithErr int                `json:"completed_with_errors"`
	Failed           int                `json:"failed"`
	Running          int                `json:"running"`
	FailRate         float64            `json:"fail_rate"`
}

// MetricsSnapshot holds a point-in-time view of every pipeline's recent
// job-run health, used by Alerter to decide whether to page.
type MetricsSnapshot struct {
	Pipelines     []PipelineMetrics `json:"pipelines"`
	StaleRunning  int               `json:"stale_running"`
	LookbackHours int               `json:"lookback_hours"`
	CollectedAt   time.Time         `json:"collected_at"`
}

// allPipelines enumerates every named pipeline the collector reports on.
// The job-run ledger itself (Pipeline A) has no separate metrics row since
// it IS the ledger being measured.
var allPipelines = []model.PipelineName{
	model.PipelineSalesTracker,
	model.PipelineReplacement,
	model.PipelineAdSync,
	model.PipelineBudgetOpt,
	model.PipelineWinnerScaler,
}

// staleAfter is how long a "running" JobRun can sit before it's counted as
// stuck rather than merely in progress. The pipelines set no run timeout of
// their own, so a run still working after this long is also counted.
const staleAfter = 45 * time.Minute

// Collector gathers per-pipeline job-run metrics from the store.
type Collector struct {
	store store.Store
	clock func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, clock: time.Now}
}

// Collect gathers a snapshot of every pipeline's run health over the given
// lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.clock().UTC()
	since := now.Add(-time.Duration(lookbackHours) * time.Hour)

	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	for _, pipeline := range allPipelines {
		runs, err := c.store.ListRecentJobRuns(ctx, pipeline, since)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: list recent runs for %s", pipeline)
		}

		m := PipelineMetrics{Pipeline: pipeline, Total: len(runs)}
		for _, r := range runs {
			switch r.Status {
			case model.RunStatusCompleted:
				m.Completed++
			case model.RunStatusCompletedWithErrors:
				m.CompletedWithErr++
			case model.RunStatusFailed:
				m.Failed++
			case model.RunStatusRunning:
				m.Running++
			}
		}
		finished := m.Completed + m.CompletedWithErr + m.Failed
		if finished > 0 {
			m.FailRate = float64(m.Failed) / float64(finished)
		}
		snap.Pipelines = append(snap.Pipelines, m)
	}

	stale, err := c.store.ListStaleRunningJobRuns(ctx, now.Add(-staleAfter))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list stale running runs")
	}
	snap.StaleRunning = len(stale)

	return snap, nil
}
