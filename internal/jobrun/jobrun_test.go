package jobrun

import (
	"context"
	"testing"
	"time"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/store"
)

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

func TestLedgerOpenCloseSetsStatusFromErrors(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newTestStore(t))

	run, err := l.Open(ctx, model.PipelineReplacement, "t1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if run.Status != model.RunStatusRunning {
		t.Fatalf("status = %v, want running", run.Status)
	}

	if err := l.Close(ctx, run, false); err != nil {
		t.Fatalf("close: %v", err)
	}
	if run.Status != model.RunStatusCompleted {
		t.Fatalf("status = %v, want completed", run.Status)
	}
}

func TestLedgerCloseFatalOverridesEmptyErrorLog(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newTestStore(t))

	run, err := l.Open(ctx, model.PipelineAdSync, "t1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Close(ctx, run, true); err != nil {
		t.Fatalf("close: %v", err)
	}
	if run.Status != model.RunStatusFailed {
		t.Fatalf("status = %v, want failed", run.Status)
	}
}

func TestReconcileStaleClosesOldRunningRuns(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	fixedNow := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	l := &Ledger{Store: st, Clock: func() time.Time { return fixedNow }}

	run, err := l.Open(ctx, model.PipelineWinnerScaler, "t1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	later := &Ledger{Store: st, Clock: func() time.Time { return fixedNow.Add(2 * time.Hour) }}
	n, err := later.ReconcileStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("reconciled %d runs, want 1", n)
	}

	got, err := st.GetJobRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get job run: %v", err)
	}
	if got.Status != model.RunStatusCompletedWithErrors {
		t.Fatalf("status = %v, want completed_with_errors", got.Status)
	}
}
