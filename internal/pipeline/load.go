package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/storage"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.Config{
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// RowSink receives the shaped rows. *repository.SportsDataRepository
// implements it.
type RowSink interface {
	InsertRows(ctx context.Context, rows []domain.SportsDataRow) (int, error)
	Close() error
}

// SinkOpener opens a fresh sink for one load attempt.
type SinkOpener func(ctx context.Context) (RowSink, error)

// LoadStage downloads the staged artifact and inserts its leagues into the
// relational store.
type LoadStage struct {
	store     storage.ObjectStorage
	open      SinkOpener
	dataDir   string
	objectKey string
	log       zerolog.Logger
}

func NewLoadStage(store storage.ObjectStorage, open SinkOpener, dataDir, objectKey string, log zerolog.Logger) *LoadStage {
	return &LoadStage{
		store:     store,
		open:      open,
		dataDir:   dataDir,
		objectKey: objectKey,
		log:       log.With().Str("stage", string(domain.StageLoad)).Logger(),
	}
}

// Download copies the staged object to dataDir/objectKey.
func (s *LoadStage) Download(ctx context.Context) (string, error) {
	bucket := s.store.Bucket()

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		err = fmt.Errorf("%w: create data directory %s: %v", ErrResource, s.dataDir, err)
		s.log.Error().Err(err).Msg("Error downloading data")
		return "", err
	}

	path := filepath.Join(s.dataDir, s.objectKey)
	if err := s.store.DownloadObject(ctx, s.objectKey, path); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			err = fmt.Errorf("%w: object %s/%s: %v", ErrResource, bucket, s.objectKey, err)
		} else {
			err = fmt.Errorf("%w: download %s/%s: %v", ErrTransport, bucket, s.objectKey, err)
		}
		s.log.Error().Err(err).Str("bucket", bucket).Str("key", s.objectKey).Msg("Error downloading data")
		return "", err
	}

	s.log.Info().Str("bucket", bucket).Str("key", s.objectKey).Str("path", path).Msg("Data downloaded")
	return path, nil
}

// Load parses the file at path and inserts every league in order. The sink
// commits once; on any error nothing is left behind. The sink is closed on
// every path.
func (s *LoadStage) Load(ctx context.Context, path string) (int, error) {
	sink, err := s.open(ctx)
	if err != nil {
		err = fmt.Errorf("%w: open database: %v", ErrResource, err)
		s.log.Error().Err(err).Msg("Error loading data")
		return 0, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("Error closing database connection")
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("%w: read %s: %v", ErrResource, path, err)
		s.log.Error().Err(err).Msg("Error loading data")
		return 0, err
	}

	rows, err := ParseLeagues(data)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("Error loading data")
		return 0, err
	}

	n, err := sink.InsertRows(ctx, rows)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrResource, err)
		s.log.Error().Err(err).Msg("Error loading data")
		return 0, err
	}

	s.log.Info().Int("rows", n).Msg("Data loaded into PostgreSQL")
	return n, nil
}

// Run downloads the artifact and loads it. Load is skipped when no file was
// produced.
func (s *LoadStage) Run(ctx context.Context) *domain.StageReport {
	report := newReport(domain.StageLoad, s.store.Bucket(), s.objectKey)
	log := s.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Msg("Load started")

	path, err := s.Download(ctx)
	if err != nil {
		return finish(report, domain.RunStatusFailed, err)
	}
	report.Artifact = path

	n, err := s.Load(ctx, path)
	if err != nil {
		return finish(report, domain.RunStatusFailed, err)
	}
	report.Rows = n

	log.Info().Int("rows", n).Msg("Load finished")
	return finish(report, domain.RunStatusSucceeded, nil)
}

// ParseLeagues shapes the staged artifact into rows. A missing or null
// "leagues" gives no rows; anything else that is not an array of objects
// carrying idLeague, strLeague and strSport is ErrDataFormat. Null values
// become NULL columns; non-string scalars are stored in their JSON text form.
func ParseLeagues(data []byte) ([]domain.SportsDataRow, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode artifact: %v", ErrDataFormat, err)
	}

	raw, ok := doc[domain.LeaguesField]
	if !ok || raw == nil {
		return []domain.SportsDataRow{}, nil
	}

	leagues, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not an array", ErrDataFormat, domain.LeaguesField, raw)
	}

	rows := make([]domain.SportsDataRow, 0, len(leagues))
	for i, item := range leagues {
		league, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: league #%d is %T, not an object", ErrDataFormat, i, item)
		}

		var row domain.SportsDataRow
		for _, f := range []struct {
			key string
			dst **string
		}{
			{domain.LeagueIDField, &row.LeagueID},
			{domain.LeagueNameField, &row.LeagueName},
			{domain.SportField, &row.Sport},
		} {
			v, ok := league[f.key]
			if !ok {
				return nil, fmt.Errorf("%w: league #%d has no %q", ErrDataFormat, i, f.key)
			}
			*f.dst = column(v)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func column(v interface{}) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			s := fmt.Sprint(t)
			return &s
		}
		s := string(b)
		return &s
	default:
		s := fmt.Sprint(t)
		return &s
	}
}
