package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/sports-etl/internal/cache"
	"github.com/andresuchdata/sports-etl/internal/config"
	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/pipeline"
	"github.com/andresuchdata/sports-etl/internal/repository"
	"github.com/andresuchdata/sports-etl/internal/repository/postgres"
	"github.com/andresuchdata/sports-etl/internal/source"
	"github.com/andresuchdata/sports-etl/internal/storage"
	"github.com/rs/zerolog"
)

// Pipeline bundles the run service with the resources it holds open.
type Pipeline struct {
	*RunService

	store  storage.ObjectStorage
	status cache.RunStatusStore
	log    zerolog.Logger
}

// NewPipeline builds every stage from cfg. The database is dialled per load
// attempt, not here.
func NewPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Pipeline, error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	status, err := cache.NewRunStatusStore(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("run status: redis unavailable, keeping reports in memory")
		status = cache.NewMemoryRunStatusStore()
	}

	src := source.NewClient(cfg.Source.URL, source.Options{
		Timeout:   cfg.Source.Timeout,
		UserAgent: source.DefaultOptions().UserAgent,
	})

	dbCfg := cfg.Database
	open := func(ctx context.Context) (pipeline.RowSink, error) {
		db, err := postgres.NewDB(ctx, &dbCfg)
		if err != nil {
			return nil, err
		}
		repo, err := repository.NewSportsDataRepository(db, dbCfg.Table)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	}

	o := pipeline.NewOrchestrator(status, log)
	o.Register(domain.StageFetch, pipeline.NewFetchStage(src, store, cfg.App.DataDir, cfg.Storage.ObjectKey, log))
	o.Register(domain.StageLoad, pipeline.NewLoadStage(store, open, cfg.App.DataDir, cfg.Storage.ObjectKey, log))
	o.Register(domain.StageProbe, pipeline.NewProbeStage(store, cfg.App.DataDir, log))

	return &Pipeline{
		RunService: NewRunService(o),
		store:      store,
		status:     status,
		log:        log,
	}, nil
}

// Close releases the object store client and the status store.
func (p *Pipeline) Close() {
	if err := p.store.Close(); err != nil {
		p.log.Warn().Err(err).Msg("failed to close object storage client")
	}
	if err := p.status.Close(); err != nil {
		p.log.Warn().Err(err).Msg("failed to close run status store")
	}
}
