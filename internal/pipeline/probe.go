package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/storage"
	"github.com/rs/zerolog"
)

const (
	ProbePayload      = "MinIO connection successful."
	ProbeObjectKey    = "test_connection.txt"
	ProbeDownloadName = "downloaded_test_connection.txt"
)

// ProbeStage checks the object store by round-tripping a small file.
type ProbeStage struct {
	store   storage.ObjectStorage
	dataDir string
	log     zerolog.Logger
}

func NewProbeStage(store storage.ObjectStorage, dataDir string, log zerolog.Logger) *ProbeStage {
	return &ProbeStage{
		store:   store,
		dataDir: dataDir,
		log:     log.With().Str("stage", string(domain.StageProbe)).Logger(),
	}
}

// Probe ensures the bucket, uploads ProbePayload, downloads it back and
// compares the bytes.
func (p *ProbeStage) Probe(ctx context.Context) error {
	bucket := p.store.Bucket()
	log := p.log.With().Str("bucket", bucket).Logger()

	created, err := p.store.EnsureBucket(ctx)
	if err != nil {
		err = fmt.Errorf("%w: ensure bucket %s: %v", ErrResource, bucket, err)
		log.Error().Err(err).Msg("Error checking bucket")
		return err
	}
	if created {
		log.Info().Msg("Bucket created")
	} else {
		log.Info().Msg("Bucket already exists")
	}

	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		err = fmt.Errorf("%w: create data directory %s: %v", ErrResource, p.dataDir, err)
		log.Error().Err(err).Msg("Error writing test file")
		return err
	}

	localPath := filepath.Join(p.dataDir, ProbeObjectKey)
	if err := os.WriteFile(localPath, []byte(ProbePayload), 0o644); err != nil {
		err = fmt.Errorf("%w: write %s: %v", ErrResource, localPath, err)
		log.Error().Err(err).Msg("Error writing test file")
		return err
	}

	if err := p.store.UploadFile(ctx, ProbeObjectKey, localPath); err != nil {
		err = fmt.Errorf("%w: upload %s: %v", ErrTransport, ProbeObjectKey, err)
		log.Error().Err(err).Msg("Error uploading test file")
		return err
	}
	log.Info().Str("key", ProbeObjectKey).Msg("Test file uploaded")

	downloadPath := filepath.Join(p.dataDir, ProbeDownloadName)
	if err := p.store.DownloadObject(ctx, ProbeObjectKey, downloadPath); err != nil {
		err = fmt.Errorf("%w: download %s: %v", ErrTransport, ProbeObjectKey, err)
		log.Error().Err(err).Msg("Error downloading test file")
		return err
	}
	log.Info().Str("path", downloadPath).Msg("Test file downloaded")

	got, err := os.ReadFile(downloadPath)
	if err != nil {
		err = fmt.Errorf("%w: read %s: %v", ErrResource, downloadPath, err)
		log.Error().Err(err).Msg("Error reading downloaded file")
		return err
	}

	if !bytes.Equal(got, []byte(ProbePayload)) {
		err = fmt.Errorf("%w: expected %q, got %q", ErrVerificationFailed, ProbePayload, got)
		log.Error().Err(err).Msg("File content verification failed")
		return err
	}

	log.Info().Msg("File content verified successfully")
	return nil
}

func (p *ProbeStage) Run(ctx context.Context) *domain.StageReport {
	report := newReport(domain.StageProbe, p.store.Bucket(), ProbeObjectKey)
	if err := p.Probe(ctx); err != nil {
		return finish(report, domain.RunStatusFailed, err)
	}
	report.Artifact = filepath.Join(p.dataDir, ProbeDownloadName)
	report.Bytes = int64(len(ProbePayload))
	return finish(report, domain.RunStatusSucceeded, nil)
}
