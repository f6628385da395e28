// Package jobrun implements Pipeline A: the ledger every other pipeline
// opens at the start of its invocation and closes at the end.
package jobrun

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/store"
)

// Ledger opens and closes JobRun rows and reconciles stale ones left
// Running by a process that crashed or was killed mid-invocation.
type Ledger struct {
	Store store.Store
	Clock func() time.Time
}

// NewLedger builds a Ledger against st, defaulting Clock to time.Now.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{Store: st, Clock: time.Now}
}

// Open starts a new run for the given pipeline/tenant pair.
func (l *Ledger) Open(ctx context.Context, pipeline model.PipelineName, tenantID string) (*model.JobRun, error) {
	run, err := l.Store.OpenJobRun(ctx, pipeline, tenantID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("job run opened",
		zap.String("pipeline", string(pipeline)),
		zap.String("tenant_id", tenantID),
		zap.String("run_id", run.ID))
	return run, nil
}

// Close finalizes run, deriving its terminal status from the accumulated
// error log and the fatal flag, and persists it.
func (l *Ledger) Close(ctx context.Context, run *model.JobRun, fatal bool) error {
	run.Close(l.Clock().UTC(), fatal)
	if err := l.Store.CloseJobRun(ctx, run); err != nil {
		return err
	}
	zap.L().Info("job run closed",
		zap.String("pipeline", string(run.Pipeline)),
		zap.String("tenant_id", run.TenantID),
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("error_count", len(run.ErrorLog)))
	return nil
}

// ReconcileStale closes every run still marked Running after olderThan has
// elapsed since it started, recording it as CompletedWithErrors with a
// synthetic error noting the crash. None of the pipelines calls it before
// opening its runs.
func (l *Ledger) ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := l.Clock().UTC().Add(-olderThan)
	stale, err := l.Store.ListStaleRunningJobRuns(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for i := range stale {
		run := stale[i]
		run.AppendError("run left in status=running past its expected lifetime; process likely crashed or was killed")
		run.Close(l.Clock().UTC(), false)
		if err := l.Store.CloseJobRun(ctx, &run); err != nil {
			return i, err
		}
		zap.L().Warn("reconciled stale job run",
			zap.String("run_id", run.ID),
			zap.String("pipeline", string(run.Pipeline)),
			zap.String("tenant_id", run.TenantID))
	}
	return len(stale), nil
}
