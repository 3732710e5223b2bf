package domain

import (
	"strings"
	"time"
)

// Stage names a pipeline step.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageLoad  Stage = "load"
	StageProbe Stage = "probe"
)

var stagesByName = map[string]Stage{
	"fetch": StageFetch,
	"load":  StageLoad,
	"probe": StageProbe,
}

// ParseStage returns the stage for a given name (case-insensitive).
func ParseStage(name string) (Stage, bool) {
	stage, ok := stagesByName[strings.ToLower(strings.TrimSpace(name))]

	return stage, ok
}

// RunStatus is the outcome of a stage run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusSkipped marks a stage of a sequence that did not run because an
	// earlier stage failed.
	RunStatusSkipped RunStatus = "skipped"
)

// StageReport summarises one stage run. It is what the CLI logs, what the
// control API returns and what the status store keeps.
type StageReport struct {
	RunID      string     `json:"run_id"`
	Stage      Stage      `json:"stage"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Bucket     string     `json:"bucket,omitempty"`
	ObjectKey  string     `json:"object_key,omitempty"`
	Artifact   string     `json:"artifact,omitempty"`
	Bytes      int64      `json:"bytes,omitempty"`
	Checksum   string     `json:"checksum,omitempty"`
	Rows       int        `json:"rows"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r *StageReport) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// Duration is the wall time of a finished run, zero while running.
func (r *StageReport) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
