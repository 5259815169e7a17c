package storage

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

// DefaultMaxObjectBytes caps Fetch when no limit is configured.
const DefaultMaxObjectBytes = 10 << 20

// objectGetter is the part of *minio.Client the store needs.
type objectGetter interface {
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Store reads uploaded pet photos from a MinIO/S3 bucket. It never writes.
type Store struct {
	client     objectGetter
	bucketName string
	maxBytes   int64
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, maxBytes int64) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	return newStore(cli, bucket, maxBytes), nil
}

func newStore(cli objectGetter, bucket string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	return &Store{client: cli, bucketName: bucket, maxBytes: maxBytes}
}

// Fetch implements interpretation.ImageSource. It returns the object bytes
// and the content type recorded on upload.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	if key == "" {
		return nil, "", interpretation.NewError(interpretation.KindInvalidInput, "object key is required", nil)
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", classify(key, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces NoSuchKey before reading
	info, err := obj.Stat()
	if err != nil {
		return nil, "", classify(key, err)
	}
	if info.Size > s.maxBytes {
		return nil, "", interpretation.NewError(interpretation.KindInvalidInput,
			fmt.Sprintf("object %s is %d bytes, limit is %d", key, info.Size, s.maxBytes), nil)
	}

	data, err := io.ReadAll(io.LimitReader(obj, s.maxBytes+1))
	if err != nil {
		return nil, "", classify(key, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", interpretation.NewError(interpretation.KindInvalidInput,
			fmt.Sprintf("object %s exceeds %d bytes", key, s.maxBytes), nil)
	}

	log.Printf("object fetched bucket=%s key=%s size=%d content_type=%s", s.bucketName, key, len(data), info.ContentType)
	return data, info.ContentType, nil
}

// Check reports whether the bucket is reachable; used by /health.
func (s *Store) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s not found", s.bucketName)
	}
	return nil
}

func classify(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "InvalidObjectName", "XMinioInvalidObjectName":
		return interpretation.NewError(interpretation.KindInvalidInput, "object "+key+" not found", err)
	}
	return fmt.Errorf("fetch object %s: %w", key, err)
}
