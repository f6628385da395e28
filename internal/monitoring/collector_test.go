package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/sellsadvisors/fleet/internal/config"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/store"
)

func mockMonitoringConfig(failureRateThreshold float64) config.MonitoringConfig {
	return config.MonitoringConfig{FailureRateThreshold: failureRateThreshold}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func closedRun(t *testing.T, ctx context.Context, st store.Store, pipeline model.PipelineName, status model.RunStatus) {
	t.Helper()
	run, err := st.OpenJobRun(ctx, pipeline, "t1")
	if err != nil {
		t.Fatalf("open job run: %v", err)
	}
	if status == model.RunStatusCompletedWithErrors {
		run.AppendError("boom")
	}
	run.Close(time.Now().UTC(), status == model.RunStatusFailed)
	if err := st.CloseJobRun(ctx, run); err != nil {
		t.Fatalf("close job run: %v", err)
	}
}

func TestCollectComputesPerPipelineFailRate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	closedRun(t, ctx, st, model.PipelineAdSync, model.RunStatusCompleted)
	closedRun(t, ctx, st, model.PipelineAdSync, model.RunStatusCompleted)
	closedRun(t, ctx, st, model.PipelineAdSync, model.RunStatusCompleted)
	closedRun(t, ctx, st, model.PipelineAdSync, model.RunStatusCompleted)
	closedRun(t, ctx, st, model.PipelineAdSync, model.RunStatusFailed)

	c := NewCollector(st)
	snap, err := c.Collect(ctx, 24)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	var found bool
	for _, m := range snap.Pipelines {
		if m.Pipeline != model.PipelineAdSync {
			continue
		}
		found = true
		if m.Total != 5 || m.Completed != 4 || m.Failed != 1 {
			t.Fatalf("unexpected metrics: %+v", m)
		}
		if m.FailRate != 0.2 {
			t.Fatalf("fail rate = %v, want 0.2", m.FailRate)
		}
	}
	if !found {
		t.Fatal("ad_sync metrics missing from snapshot")
	}
}

func TestCollectCountsStaleRunningRuns(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	fixedNow := time.Now().UTC()
	if _, err := st.OpenJobRun(ctx, model.PipelineReplacement, "t1"); err != nil {
		t.Fatalf("open job run: %v", err)
	}

	c := &Collector{store: st, clock: func() time.Time { return fixedNow.Add(2 * time.Hour) }}
	snap, err := c.Collect(ctx, 24)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap.StaleRunning != 1 {
		t.Fatalf("stale running = %d, want 1", snap.StaleRunning)
	}
}

func TestAlerterEvaluateFlagsHighFailureRate(t *testing.T) {
	cfg := mockMonitoringConfig(0.1)
	a := NewAlerter(cfg)

	snap := &MetricsSnapshot{
		LookbackHours: 24,
		Pipelines: []PipelineMetrics{
			{Pipeline: model.PipelineAdSync, Total: 10, Completed: 6, Failed: 4, FailRate: 0.4},
		},
	}

	alerts := a.Evaluate(snap)
	if len(alerts) != 1 || alerts[0].Type != AlertPipelineFailureRate {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
}

func TestAlerterEvaluateFlagsStaleRunning(t *testing.T) {
	a := NewAlerter(mockMonitoringConfig(0.9))
	snap := &MetricsSnapshot{StaleRunning: 2}

	alerts := a.Evaluate(snap)
	if len(alerts) != 1 || alerts[0].Type != AlertStaleRunningJobs {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
}
