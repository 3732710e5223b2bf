package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/andresuchdata/sports-etl/internal/config"
	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/pipeline"
	"github.com/rs/zerolog"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context) *domain.StageReport {
	close(b.started)
	<-b.release
	return &domain.StageReport{Stage: domain.StageProbe, Status: domain.RunStatusSucceeded}
}

func TestRunServiceRejectsConcurrentRuns(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	o := pipeline.NewOrchestrator(nil, zerolog.Nop())
	o.Register(domain.StageProbe, runner)
	svc := NewRunService(o)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.Trigger(context.Background(), domain.StageProbe); err != nil {
			t.Errorf("first trigger: %v", err)
		}
	}()

	<-runner.started
	if _, err := svc.Trigger(context.Background(), domain.StageProbe); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}

	close(runner.release)
	wg.Wait()

	if _, ok, _ := svc.Last(context.Background(), domain.StageProbe); !ok {
		t.Error("expected the finished run to be recorded")
	}
}

func TestNewPipelineWithBlobStorage(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Source:  config.SourceConfig{URL: "http://127.0.0.1:1/unused", Timeout: 1},
		Storage: config.StorageConfig{Driver: "blob", BlobURL: "mem://", Bucket: "raw-data", ObjectKey: "sports_data.json"},
		Database: config.DatabaseConfig{
			Driver: "postgres",
			DSN:    "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
			Table:  "sports_data",
		},
		App: config.AppConfig{DataDir: filepath.Join(dir, "data"), LogDir: filepath.Join(dir, "logs")},
	}

	p, err := NewPipeline(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	report, err := p.Trigger(context.Background(), domain.StageProbe)
	if err != nil {
		t.Fatalf("Trigger probe: %v", err)
	}
	if !report.Succeeded() {
		t.Fatalf("expected probe to succeed against mem://, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(cfg.App.DataDir, pipeline.ProbeDownloadName)); err != nil {
		t.Errorf("expected downloaded probe file: %v", err)
	}

	// Nothing staged yet: load fails on download before dialling the database.
	report, err = p.Trigger(context.Background(), domain.StageLoad)
	if err != nil {
		t.Fatalf("Trigger load: %v", err)
	}
	if report.Succeeded() || report.ErrorKind != "resource" {
		t.Errorf("expected resource failure, got %+v", report)
	}
}
