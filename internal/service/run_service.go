package service

import (
	"context"
	"errors"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/pipeline"
	"golang.org/x/sync/semaphore"
)

// ErrRunInProgress is returned when a trigger arrives while another stage
// holds the run lock.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// RunService serialises stage execution. Fetch and load share the local
// artifact path and the object key, so only one stage runs at a time.
type RunService struct {
	orchestrator *pipeline.Orchestrator
	sem          *semaphore.Weighted
}

func NewRunService(orchestrator *pipeline.Orchestrator) *RunService {
	return &RunService{
		orchestrator: orchestrator,
		sem:          semaphore.NewWeighted(1),
	}
}

// Trigger runs stage if no other run is active, otherwise it returns
// ErrRunInProgress without waiting.
func (s *RunService) Trigger(ctx context.Context, stage domain.Stage) (*domain.StageReport, error) {
	reports, err := s.TriggerSequence(ctx, stage)
	if err != nil {
		return nil, err
	}
	return reports[0], nil
}

// TriggerSequence runs stages in order under a single lock acquisition.
func (s *RunService) TriggerSequence(ctx context.Context, stages ...domain.Stage) ([]*domain.StageReport, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}
	defer s.sem.Release(1)

	return s.orchestrator.RunSequence(ctx, stages...)
}

func (s *RunService) Last(ctx context.Context, stage domain.Stage) (*domain.StageReport, bool, error) {
	return s.orchestrator.Last(ctx, stage)
}
