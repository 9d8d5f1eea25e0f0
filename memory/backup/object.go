package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when a named backup does not exist.
var ErrNotFound = errors.New("backup not found")

// ObjectConfig locates a bucket on MinIO or any S3-compatible service.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
}

// ObjectStore uploads and downloads exports as objects.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStore wraps an existing client. prefix is prepended to every
// object name (e.g. "backups/").
func NewObjectStore(client *minio.Client, bucket, prefix string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, prefix: prefix}
}

// DialObjectStore creates a client from cfg and makes sure the bucket exists.
func DialObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return NewObjectStore(client, cfg.Bucket, cfg.Prefix), nil
}

func (s *ObjectStore) key(name string) string {
	return path.Join(s.prefix, name)
}

// Upload streams an export of src into the object name.
func (s *ObjectStore) Upload(ctx context.Context, name string, src Source) (int, error) {
	pr, pw := io.Pipe()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := Export(ctx, src, pw)
		_ = pw.CloseWithError(err)
		done <- result{n, err}
	}()

	_, putErr := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, minio.PutObjectOptions{
		ContentType: "application/zstd",
	})
	_ = pr.CloseWithError(putErr)

	res := <-done
	if res.err != nil {
		return res.n, res.err
	}
	if putErr != nil {
		return res.n, fmt.Errorf("put object %s: %w", name, putErr)
	}
	return res.n, nil
}

// Download imports the object name into dst.
func (s *ObjectStore) Download(ctx context.Context, name string, dst Sink) (int, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return 0, s.objectError(name, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key before decoding starts
	if _, err := obj.Stat(); err != nil {
		return 0, s.objectError(name, err)
	}
	return Import(ctx, dst, obj)
}

// Delete removes a backup. Missing objects are not an error.
func (s *ObjectStore) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !errors.Is(s.objectError(name, err), ErrNotFound) {
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

func (s *ObjectStore) objectError(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return fmt.Errorf("get object %s: %w", name, err)
}
