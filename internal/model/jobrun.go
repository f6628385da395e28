package model

import "time"

// RunStatus is the terminal or in-flight state of a JobRun (§4.A).
type RunStatus string

const (
	RunStatusRunning            RunStatus = "running"
	RunStatusCompleted          RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed             RunStatus = "failed"
)

// PipelineName identifies which of the six pipelines a JobRun belongs to.
type PipelineName string

const (
	PipelineSalesTracker PipelineName = "sales_tracker"
	PipelineReplacement  PipelineName = "replacement"
	PipelineAdSync       PipelineName = "ad_sync"
	PipelineBudgetOpt    PipelineName = "budget_optimizer"
	PipelineWinnerScaler PipelineName = "winner_scaler"
)

// JobRun is the ledger entry opened at the start of every pipeline
// invocation and closed at the end (§4.A). One row per (pipeline, tenant)
// per invocation; a run left Running past process exit is a crash marker
// until jobrun.Ledger.ReconcileStale closes it.
type JobRun struct {
	ID       string       `json:"id"`
	Pipeline PipelineName `json:"pipeline"`
	TenantID string       `json:"tenant_id"`

	Status RunStatus `json:"status"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	ErrorLog []string       `json:"error_log,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Duration returns the elapsed run time, or the elapsed time so far for a
// still-running job.
func (j JobRun) Duration(asOf time.Time) time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return asOf.Sub(j.StartedAt)
}

// AppendError records a non-fatal error without failing the whole run; the
// run still closes as CompletedWithErrors rather than Failed.
func (j *JobRun) AppendError(msg string) {
	j.ErrorLog = append(j.ErrorLog, msg)
}

// Close sets the terminal status and finish time based on whether any
// errors were recorded and whether a fatal error aborted the run outright.
func (j *JobRun) Close(asOf time.Time, fatal bool) {
	finished := asOf
	j.FinishedAt = &finished
	switch {
	case fatal:
		j.Status = RunStatusFailed
	case len(j.ErrorLog) > 0:
		j.Status = RunStatusCompletedWithErrors
	default:
		j.Status = RunStatusCompleted
	}
}
