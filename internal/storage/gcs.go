package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig configures the Google Cloud Storage client. With both fields empty
// the client uses Application Default Credentials against the public endpoint.
type GCSConfig struct {
	// Endpoint points the client at an emulator such as fake-gcs-server.
	Endpoint string
	// CredentialsFile is a service account key file.
	CredentialsFile string
}

// GCSClient implements ObjectStorage for Google Cloud Storage.
type GCSClient struct {
	client *gcs.Client
}

// NewGCSClient creates a GCSClient.
func NewGCSClient(ctx context.Context, cfg GCSConfig) (*GCSClient, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage client: %w", err)
	}
	return &GCSClient{client: client}, nil
}

// UploadObject writes data as a new object generation at key.
func (c *GCSClient) UploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	w := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	// The upload is only committed on Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ListObjects lists all objects for a given prefix.
func (c *GCSClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	it := c.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	results := make([]ObjectInfo, 0)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list failed: %w", err)
		}
		results = append(results, ObjectInfo{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *GCSClient) DownloadObject(ctx context.Context, bucket, key, destPath string) error {
	r, err := c.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcs read %s failed: %w", key, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return out.Close()
}

// Close releases the underlying client.
func (c *GCSClient) Close() error {
	return c.client.Close()
}

var _ ObjectStorage = (*GCSClient)(nil)
