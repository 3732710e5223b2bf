package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection info for a MinIO (or any S3 API) server.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioClient implements ObjectStorage on top of minio-go.
type MinioClient struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioClient builds a MinioClient. The endpoint may carry an http:// or
// https:// scheme; https forces TLS, otherwise UseSSL decides.
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioClient{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(endpoint, "/"), useSSL
	}
}

func (c *MinioClient) Bucket() string {
	return c.bucket
}

// EnsureBucket creates the bucket if it is missing.
func (c *MinioClient) EnsureBucket(ctx context.Context) (bool, error) {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return false, fmt.Errorf("minio bucket check failed for %s: %w", c.bucket, err)
	}
	if exists {
		return false, nil
	}

	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return false, nil
		}
		return false, fmt.Errorf("minio make bucket failed for %s: %w", c.bucket, err)
	}
	return true, nil
}

// UploadFile uploads srcPath under key.
func (c *MinioClient) UploadFile(ctx context.Context, key, srcPath string) error {
	_, err := c.client.FPutObject(ctx, c.bucket, key, srcPath, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return fmt.Errorf("minio upload of %s failed: %w", key, err)
	}
	return nil
}

// DownloadObject downloads key into destPath.
func (c *MinioClient) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := c.client.FGetObject(ctx, c.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, c.bucket, key)
		}
		return fmt.Errorf("minio download of %s failed: %w", key, err)
	}
	return nil
}

func (c *MinioClient) Close() error {
	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return true
	}
	var errResp minio.ErrorResponse
	return errors.As(err, &errResp) && errResp.StatusCode == http.StatusNotFound
}

var _ ObjectStorage = (*MinioClient)(nil)
