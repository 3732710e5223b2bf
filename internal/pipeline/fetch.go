package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/source"
	"github.com/andresuchdata/sports-etl/internal/storage"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// Fetcher retrieves the raw dataset. *source.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context) (source.Document, error)
}

// FetchStage pulls the dataset from the source API, stages it on local disk
// and uploads it to the bucket.
type FetchStage struct {
	source    Fetcher
	store     storage.ObjectStorage
	dataDir   string
	objectKey string
	log       zerolog.Logger
}

type fetchResult struct {
	path     string
	bytes    int64
	checksum string
	leagues  int
}

func NewFetchStage(src Fetcher, store storage.ObjectStorage, dataDir, objectKey string, log zerolog.Logger) *FetchStage {
	return &FetchStage{
		source:    src,
		store:     store,
		dataDir:   dataDir,
		objectKey: objectKey,
		log:       log.With().Str("stage", string(domain.StageFetch)).Logger(),
	}
}

// Fetch downloads the dataset and writes it, indented, to dataDir/objectKey.
// The file is overwritten on every call.
func (s *FetchStage) Fetch(ctx context.Context) (string, error) {
	res, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	return res.path, nil
}

func (s *FetchStage) fetch(ctx context.Context) (*fetchResult, error) {
	doc, err := s.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, source.ErrInvalidJSON) {
			err = fmt.Errorf("%w: %v", ErrDataFormat, err)
		} else {
			err = fmt.Errorf("%w: fetch source data: %v", ErrTransport, err)
		}
		s.log.Error().Err(err).Msg("Error fetching data")
		return nil, err
	}

	data, err := source.Encode(doc)
	if err != nil {
		err = fmt.Errorf("%w: encode dataset: %v", ErrDataFormat, err)
		s.log.Error().Err(err).Msg("Error encoding data")
		return nil, err
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		err = fmt.Errorf("%w: create data directory %s: %v", ErrResource, s.dataDir, err)
		s.log.Error().Err(err).Msg("Error saving data")
		return nil, err
	}

	path := filepath.Join(s.dataDir, s.objectKey)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		err = fmt.Errorf("%w: write %s: %v", ErrResource, path, err)
		s.log.Error().Err(err).Msg("Error saving data")
		return nil, err
	}

	res := &fetchResult{
		path:     path,
		bytes:    int64(len(data)),
		checksum: strconv.FormatUint(xxhash.Sum64(data), 16),
		leagues:  source.LeagueCount(doc),
	}

	s.log.Info().
		Str("path", path).
		Int64("bytes", res.bytes).
		Int("leagues", res.leagues).
		Msg("Data saved")

	return res, nil
}

// Upload makes sure the bucket exists and uploads path under its base name.
func (s *FetchStage) Upload(ctx context.Context, path string) error {
	bucket := s.store.Bucket()
	key := filepath.Base(path)

	created, err := s.store.EnsureBucket(ctx)
	if err != nil {
		err = fmt.Errorf("%w: ensure bucket %s: %v", ErrResource, bucket, err)
		s.log.Error().Err(err).Str("bucket", bucket).Msg("Error uploading data")
		return err
	}
	if created {
		s.log.Info().Str("bucket", bucket).Msg("Bucket created")
	}

	if err := s.store.UploadFile(ctx, key, path); err != nil {
		err = fmt.Errorf("%w: upload %s: %v", ErrTransport, key, err)
		s.log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error uploading data")
		return err
	}

	s.log.Info().Str("bucket", bucket).Str("key", key).Msg("Data uploaded")
	return nil
}

// Run fetches then uploads. Upload is skipped when the fetch failed.
func (s *FetchStage) Run(ctx context.Context) *domain.StageReport {
	report := newReport(domain.StageFetch, s.store.Bucket(), s.objectKey)
	log := s.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Msg("Fetch started")

	res, err := s.fetch(ctx)
	if err != nil {
		return finish(report, domain.RunStatusFailed, err)
	}
	report.Artifact = res.path
	report.Bytes = res.bytes
	report.Checksum = res.checksum
	if res.leagues > 0 {
		report.Rows = res.leagues
	}

	if err := s.Upload(ctx, res.path); err != nil {
		return finish(report, domain.RunStatusFailed, err)
	}

	log.Info().Str("checksum", res.checksum).Msg("Fetch finished")
	return finish(report, domain.RunStatusSucceeded, nil)
}
