package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// BlobClient implements ObjectStorage over a gocloud bucket URL such as
// mem://, file:///var/lib/staging, s3://raw-data?region=... or gs://raw-data.
type BlobClient struct {
	bucket *blob.Bucket
	name   string
}

// OpenBlobClient opens the bucket at url. name is only used for logging.
func OpenBlobClient(ctx context.Context, url, name string) (*BlobClient, error) {
	if url == "" {
		return nil, fmt.Errorf("blob bucket url must be provided")
	}
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", url, err)
	}
	return NewBlobClient(bucket, name), nil
}

// NewBlobClient wraps an already opened bucket.
func NewBlobClient(bucket *blob.Bucket, name string) *BlobClient {
	return &BlobClient{bucket: bucket, name: name}
}

func (c *BlobClient) Bucket() string {
	return c.name
}

// EnsureBucket only verifies access: gocloud buckets cannot be created
// through the portable API.
func (c *BlobClient) EnsureBucket(ctx context.Context) (bool, error) {
	ok, err := c.bucket.IsAccessible(ctx)
	if err != nil {
		return false, fmt.Errorf("bucket %s check failed: %w", c.name, err)
	}
	if !ok {
		return false, fmt.Errorf("bucket %s is not accessible", c.name)
	}
	return false, nil
}

func (c *BlobClient) UploadFile(ctx context.Context, key, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer f.Close()

	// Cancelling the writer's context before Close aborts the write and keeps
	// the previous object.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := c.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType(key)})
	if err != nil {
		return fmt.Errorf("failed to open writer for %s: %w", key, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish upload of %s: %w", key, err)
	}
	return nil
}

func (c *BlobClient) DownloadObject(ctx context.Context, key, destPath string) error {
	r, err := c.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, c.name, key)
		}
		return fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer r.Close()

	return writeFileAtomic(destPath, r)
}

func (c *BlobClient) Close() error {
	return c.bucket.Close()
}

var _ ObjectStorage = (*BlobClient)(nil)
