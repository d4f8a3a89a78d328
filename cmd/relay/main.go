package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/andresuchdata/timesheet-relay/internal/relay"
	"github.com/andresuchdata/timesheet-relay/internal/storage"
	"github.com/andresuchdata/timesheet-relay/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type storageKey struct{}

// lazyStorage opens the object storage client on first use, so commands fail
// on their own input before they fail on storage credentials.
type lazyStorage struct {
	ctx context.Context
	cfg config.StorageConfig

	once    sync.Once
	objects storage.ObjectStorage
	err     error
}

func (l *lazyStorage) open() (storage.ObjectStorage, error) {
	l.once.Do(func() {
		l.objects, l.err = storage.New(l.ctx, l.cfg)
		if l.err != nil {
			l.err = fmt.Errorf("failed to initialize object storage: %w", l.err)
		}
	})
	return l.objects, l.err
}

func (l *lazyStorage) UploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	objects, err := l.open()
	if err != nil {
		return err
	}
	return objects.UploadObject(ctx, bucket, key, data, contentType)
}

func bucketFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "bucket",
		Usage:   "Destination bucket",
		EnvVars: []string{config.EnvBucketName},
	}
}

func prefixFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "prefix",
		Usage: "Object prefix holding the snapshots",
		Value: relay.KeyPrefix,
	}
}

// setup configures logging and keeps a lazy storage client on the context.
func setup(c *cli.Context) error {
	cfg := config.Load()
	logger.Configure(c.String("log-level"), cfg.Log.Format)

	storageCfg := cfg.Storage
	if backend := c.String("storage-backend"); backend != "" {
		storageCfg.Backend = backend
	}

	c.Context = context.WithValue(c.Context, storageKey{}, &lazyStorage{ctx: c.Context, cfg: storageCfg})
	return nil
}

func storageOpener(c *cli.Context) *lazyStorage {
	l, _ := c.Context.Value(storageKey{}).(*lazyStorage)
	return l
}

func objectStorage(c *cli.Context) (storage.ObjectStorage, error) {
	return storageOpener(c).open()
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "relay",
		Usage: "Copy the timesheet API document into object storage and inspect stored snapshots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "storage-backend",
				Usage:   "Object storage backend (gcs, s3, minio)",
				EnvVars: []string{"STORAGE_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Fetch the timesheet document once and upload it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "Timesheet API endpoint",
						EnvVars: []string{config.EnvAPIURL},
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Bearer token for the timesheet API",
						EnvVars: []string{config.EnvAPIKey},
					},
					bucketFlag(),
				},
				Action: runRelay,
			},
			{
				Name:  "list",
				Usage: "List stored snapshots",
				Flags: []cli.Flag{
					bucketFlag(),
					prefixFlag(),
				},
				Action: listSnapshots,
			},
			{
				Name:      "download",
				Usage:     "Download a stored snapshot",
				ArgsUsage: "[key]",
				Flags: []cli.Flag{
					bucketFlag(),
					prefixFlag(),
					&cli.StringFlag{
						Name:  "dest",
						Usage: "Directory to download into",
						Value: "./data/snapshots",
					},
					&cli.BoolFlag{
						Name:  "latest",
						Usage: "Download the most recent snapshot instead of a named key",
					},
				},
				Action: downloadSnapshot,
			},
		},
	}
}

func runRelay(c *cli.Context) error {
	cfg := config.RelayConfig{
		APIURL: c.String("api-url"),
		APIKey: c.String("api-key"),
		Bucket: c.String("bucket"),
	}

	res := relay.New(cfg, storageOpener(c)).Invoke(c.Context)
	if !res.OK() {
		return cli.Exit(res.Message, 1)
	}

	fmt.Fprintln(c.App.Writer, res.Message)
	return nil
}
