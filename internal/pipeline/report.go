package pipeline

import (
	"time"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/google/uuid"
)

func newReport(stage domain.Stage, bucket, key string) *domain.StageReport {
	return &domain.StageReport{
		RunID:     uuid.NewString(),
		Stage:     stage,
		StartedAt: time.Now().UTC(),
		Bucket:    bucket,
		ObjectKey: key,
	}
}

// finish stamps the report and sets its status from err.
func finish(report *domain.StageReport, status domain.RunStatus, err error) *domain.StageReport {
	now := time.Now().UTC()
	report.FinishedAt = &now
	report.Status = status
	if err != nil {
		report.Status = domain.RunStatusFailed
		report.Error = err.Error()
		report.ErrorKind = ErrorKind(err)
	}
	return report
}
