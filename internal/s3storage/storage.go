package s3storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/config"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

// Storage wraps MinIO/S3 interactions for the uploaded file blobs.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.UploadsBucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the uploads bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// UploadStream stores the raw file from a reader without buffering it fully.
func (s *Storage) UploadStream(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, r, size, opts)
	if err != nil {
		return model.Transient(fmt.Errorf("upload object: %w", err))
	}
	return nil
}

// Download fetches the stored file bytes. A missing object is a deterministic
// failure (model.ErrNotFound); everything else is treated as a connectivity
// fault eligible for redelivery.
func (s *Storage) Download(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, model.Transient(fmt.Errorf("get object: %w", err))
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", objectKey, model.ErrNotFound)
		}
		return nil, model.Transient(fmt.Errorf("read object: %w", err))
	}
	return buf, nil
}
