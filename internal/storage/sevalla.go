package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chartmuseum/storage"
)

// SevallaConfig encapsulates the connection info for Sevalla (S3-compatible) storage.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// SevallaClient implements ObjectStorage for Sevalla / S3-compatible services.
// chartmuseum's backend is bound to a single bucket, so one is built per call.
// Objects are written without an explicit content type.
type SevallaClient struct {
	endpoint string
	region   string
}

// NewSevallaClient validates cfg and exports the AWS credentials chartmuseum reads.
func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
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

	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	return &SevallaClient{
		endpoint: endpoint,
		region:   region,
	}, nil
}

func (c *SevallaClient) backend(bucket string) storage.Backend {
	return storage.NewAmazonS3BackendWithOptions(
		bucket,
		"", // no prefix
		c.region,
		c.endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)
}

// UploadObject stores data at key. contentType is ignored by this backend.
func (c *SevallaClient) UploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := c.backend(bucket).PutObject(key, data); err != nil {
		return fmt.Errorf("sevalla put %s failed: %w", key, err)
	}
	return nil
}

// ListObjects lists all objects for a given prefix.
func (c *SevallaClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	files, err := c.backend(bucket).ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("sevalla list failed: %w", err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		results = append(results, ObjectInfo{
			Key:          joinPrefix(prefix, object.Path),
			Size:         int64(len(object.Content)),
			LastModified: object.LastModified,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *SevallaClient) DownloadObject(ctx context.Context, bucket, key, destPath string) error {
	object, err := c.backend(bucket).GetObject(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

var _ ObjectStorage = (*SevallaClient)(nil)

// chartmuseum reports listed paths relative to the listing prefix.
func joinPrefix(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || strings.HasPrefix(path, prefix+"/") {
		return path
	}
	return prefix + "/" + strings.TrimPrefix(path, "/")
}

func awsBool(v bool) *bool {
	return &v
}
