package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/config"
)

// ContentTypeJSON is the content type stored alongside every timesheet snapshot.
const ContentTypeJSON = "application/json"

// Backend names accepted by New.
const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStorage captures the bucket operations the relay and its tooling need.
type ObjectStorage interface {
	UploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, bucket, key, destPath string) error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", BackendGCS:
		return NewGCSClient(ctx, GCSConfig{
			Endpoint:        cfg.GCSEndpoint,
			CredentialsFile: cfg.CredentialsFile,
		})
	case BackendMinio:
		return NewMinioClient(MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	case BackendS3:
		return NewSevallaClient(SevallaConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
