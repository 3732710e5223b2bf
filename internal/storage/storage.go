package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/andresuchdata/sports-etl/internal/config"
)

// ErrObjectNotFound is returned when the requested key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage captures the bucket operations the pipeline relies on.
type ObjectStorage interface {
	// Bucket returns the bucket name, for logging.
	Bucket() string
	// EnsureBucket creates the bucket when it does not exist yet. created is
	// true only when this call made it.
	EnsureBucket(ctx context.Context) (created bool, err error)
	// UploadFile stores the file at srcPath under key, replacing any previous object.
	UploadFile(ctx context.Context, key, srcPath string) error
	// DownloadObject writes the object at key to destPath, replacing any existing file.
	DownloadObject(ctx context.Context, key, destPath string) error
	Close() error
}

// New builds the ObjectStorage selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinioClient(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	case "blob":
		return OpenBlobClient(ctx, cfg.BlobURL, cfg.Bucket)
	case "sevalla":
		return NewSevallaClient(SevallaConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// writeFileAtomic copies r into destPath through a temporary file in the same
// directory so a failed download never leaves a truncated file behind.
func writeFileAtomic(destPath string, r io.Reader) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed creating temp file for %s: %w", destPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed setting mode on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return fmt.Errorf("failed moving download into %s: %w", destPath, err)
	}
	return nil
}
