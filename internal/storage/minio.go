package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/platform/ctxutil"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type minioStorage struct {
	log    *logger.Logger
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to an S3-compatible endpoint and ensures the raw
// bucket exists.
func NewMinioStorage(log *logger.Logger, cfg MinioConfig) (RawStorage, error) {
	serviceLog := log.With("service", "MinioStorage")

	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("MINIO_BUCKET_RAW is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := ctxutil.Default(context.Background())
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, faults.Transient("bucket_exists", "minio unreachable", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	serviceLog.Info("MinIO raw storage selected", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &minioStorage{log: serviceLog, client: client, bucket: cfg.Bucket}, nil
}

func (s *minioStorage) Put(ctx context.Context, path string, data io.Reader, size int64) error {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		return faults.Internal("put", fmt.Sprintf("blob path collision: %s", path), nil)
	}
	ctx, cancel := ctxutil.Default(ctx)
	defer cancel()
	// MinIO multipart upload is atomic from the reader's perspective: the
	// object is invisible until completion.
	_, err = s.client.PutObject(ctx, s.bucket, path, data, size, minio.PutObjectOptions{})
	if err != nil {
		return classifyMinioError("put", err)
	}
	return nil
}

func (s *minioStorage) Get(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, classifyMinioError("get", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, classifyMinioError("get", err)
	}
	return obj, stat.Size, nil
}

func (s *minioStorage) Delete(ctx context.Context, path string) error {
	ctx, cancel := ctxutil.Default(ctx)
	defer cancel()
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError("delete", err)
	}
	return nil
}

func (s *minioStorage) DeletePrefix(ctx context.Context, prefix string) error {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return classifyMinioError("delete_prefix", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return classifyMinioError("delete_prefix", err)
		}
	}
	return nil
}

func (s *minioStorage) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := ctxutil.Default(ctx)
	defer cancel()
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, classifyMinioError("exists", err)
	}
	return true, nil
}

func isMinioNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" || resp.StatusCode == 404
	}
	return false
}

func classifyMinioError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isMinioNotFound(err) {
		return faults.NotFound(op, "object not found")
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case resp.StatusCode == 503 || resp.StatusCode == 429:
			return faults.Transient(op, "minio throttled or unavailable", err)
		case resp.StatusCode >= 500:
			return faults.Transient(op, "minio server error", err)
		case resp.StatusCode >= 400:
			return faults.Permanent(op, "minio rejected request", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return faults.Transient(op, "minio call timed out", err)
	}
	return faults.Transient(op, "minio io error", err)
}
