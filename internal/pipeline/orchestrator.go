package pipeline

import (
	"context"
	"fmt"

	"github.com/andresuchdata/sports-etl/internal/cache"
	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/rs/zerolog"
)

// Runner is one stage that always produces a report.
type Runner interface {
	Run(ctx context.Context) *domain.StageReport
}

// Orchestrator runs registered stages by name and records their reports.
type Orchestrator struct {
	stages map[domain.Stage]Runner
	status cache.RunStatusStore
	log    zerolog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil status store keeps reports
// in memory.
func NewOrchestrator(status cache.RunStatusStore, log zerolog.Logger) *Orchestrator {
	if status == nil {
		status = cache.NewMemoryRunStatusStore()
	}
	return &Orchestrator{
		stages: make(map[domain.Stage]Runner),
		status: status,
		log:    log,
	}
}

// Register binds r to stage, replacing any previous runner.
func (o *Orchestrator) Register(stage domain.Stage, r Runner) {
	o.stages[stage] = r
}

// Run executes one stage. The error is only for an unknown stage; stage
// failures are carried in the report.
func (o *Orchestrator) Run(ctx context.Context, stage domain.Stage) (*domain.StageReport, error) {
	r, ok := o.stages[stage]
	if !ok {
		return nil, fmt.Errorf("stage %q is not configured", stage)
	}

	report := r.Run(ctx)

	if err := o.status.Record(ctx, report); err != nil {
		o.log.Warn().Err(err).Str("stage", string(stage)).Msg("run status: record failed")
	}

	evt := o.log.Info()
	if !report.Succeeded() {
		evt = o.log.Error().Str("error", report.Error).Str("error_kind", report.ErrorKind)
	}
	evt.Str("run_id", report.RunID).
		Str("stage", string(stage)).
		Str("status", string(report.Status)).
		Int("rows", report.Rows).
		Dur("duration", report.Duration()).
		Msg("Stage finished")

	return report, nil
}

// RunSequence runs stages in order. Once a stage fails, the remaining ones
// are not run and get a skipped report instead.
func (o *Orchestrator) RunSequence(ctx context.Context, stages ...domain.Stage) ([]*domain.StageReport, error) {
	reports := make([]*domain.StageReport, 0, len(stages))
	var failed *domain.StageReport
	for _, stage := range stages {
		if failed != nil {
			reports = append(reports, o.skip(stage, failed))
			continue
		}
		report, err := o.Run(ctx, stage)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
		if !report.Succeeded() {
			failed = report
		}
	}
	return reports, nil
}

// skip reports stage as not run because of an earlier failure. Skipped
// reports are not recorded so the last real attempt stays visible.
func (o *Orchestrator) skip(stage domain.Stage, cause *domain.StageReport) *domain.StageReport {
	report := finish(newReport(stage, cause.Bucket, cause.ObjectKey), domain.RunStatusSkipped, nil)
	report.Error = fmt.Sprintf("%s run %s failed", cause.Stage, cause.RunID)

	o.log.Warn().
		Str("run_id", report.RunID).
		Str("stage", string(stage)).
		Str("after", string(cause.Stage)).
		Msg("Stage skipped")
	return report
}

// Last returns the most recent report recorded for stage.
func (o *Orchestrator) Last(ctx context.Context, stage domain.Stage) (*domain.StageReport, bool, error) {
	return o.status.Last(ctx, stage)
}
