package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chartmuseum/storage"
)

// SevallaConfig encapsulates the connection info for Sevalla (S3-compatible) storage.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// SevallaClient implements ObjectStorage for Sevalla / S3-compatible services.
type SevallaClient struct {
	backend storage.Backend
	bucket  string
}

// NewSevallaClient builds a new SevallaClient backed by chartmuseum's Amazon storage backend.
func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sevalla bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	// the amazon backend reads credentials from the environment only
	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"", // no prefix
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return newSevallaClientWithBackend(backend, cfg.Bucket), nil
}

func newSevallaClientWithBackend(backend storage.Backend, bucket string) *SevallaClient {
	return &SevallaClient{
		backend: backend,
		bucket:  bucket,
	}
}

func (c *SevallaClient) Bucket() string {
	return c.bucket
}

// EnsureBucket lists the bucket root to prove it is reachable. Buckets have
// to be provisioned in the Sevalla console; this client cannot create them.
func (c *SevallaClient) EnsureBucket(ctx context.Context) (bool, error) {
	if _, err := c.backend.ListObjects(""); err != nil {
		return false, fmt.Errorf("sevalla bucket %s is not reachable: %w", c.bucket, err)
	}
	return false, nil
}

// UploadFile uploads srcPath under key.
func (c *SevallaClient) UploadFile(ctx context.Context, key, srcPath string) error {
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed reading %s: %w", srcPath, err)
	}
	if err := c.backend.PutObject(key, content); err != nil {
		return fmt.Errorf("sevalla upload of %s failed: %w", key, err)
	}
	return nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *SevallaClient) DownloadObject(ctx context.Context, key, destPath string) error {
	object, err := c.backend.GetObject(key)
	if err != nil {
		if isSevallaNotFound(err) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, c.bucket, key)
		}
		return fmt.Errorf("sevalla download of %s failed: %w", key, err)
	}
	return writeFileAtomic(destPath, bytes.NewReader(object.Content))
}

func (c *SevallaClient) Close() error {
	return nil
}

// chartmuseum surfaces backend errors as plain strings.
func isSevallaNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "no such file") ||
		strings.Contains(msg, "object not found")
}

var _ ObjectStorage = (*SevallaClient)(nil)

func awsBool(v bool) *bool {
	return &v
}
