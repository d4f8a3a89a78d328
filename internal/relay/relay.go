// Package relay copies the timesheet API document into object storage.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/andresuchdata/timesheet-relay/internal/storage"
	"github.com/andresuchdata/timesheet-relay/internal/timesheet"
	"github.com/andresuchdata/timesheet-relay/pkg/logger"
)

// Fetcher downloads the source document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Uploader writes one object into a bucket.
type Uploader interface {
	UploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Result is the outcome of one invocation, already mapped to an HTTP status
// and a plain text message.
type Result struct {
	Status  int
	Message string
	Bucket  string
	// Key is set once the storage phase has started.
	Key string
	// Err is one of *ConfigError, *FetchError, *StorageError or
	// *UnexpectedError, nil on success.
	Err error
}

// OK reports whether the snapshot was stored.
func (r Result) OK() bool {
	return r.Err == nil
}

// Relay performs the fetch then upload sequence. It holds no mutable state and
// is safe for concurrent use.
type Relay struct {
	cfg      config.RelayConfig
	fetcher  Fetcher
	uploader Uploader
	now      func() time.Time
}

// Option customises a Relay.
type Option func(*Relay)

// WithFetcher replaces the default timesheet API client.
func WithFetcher(f Fetcher) Option {
	return func(r *Relay) { r.fetcher = f }
}

// WithClock replaces time.Now for key generation.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// New creates a Relay. Unless overridden, the source is fetched with a
// timesheet.Client built from cfg.
func New(cfg config.RelayConfig, uploader Uploader, opts ...Option) *Relay {
	r := &Relay{
		cfg:      cfg,
		uploader: uploader,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = timesheet.NewClient(cfg.APIURL, cfg.APIKey)
	}
	return r
}

// Invoke runs the relay once. Every failure is terminal and reported as a 500.
func (r *Relay) Invoke(ctx context.Context) Result {
	log := logger.Log

	if err := r.cfg.Validate(); err != nil {
		return r.fail(newConfigError(err), "")
	}

	log.Info().Str("url", r.cfg.APIURL).Msg("Downloading data from timesheet API")
	payload, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return r.fail(&FetchError{Err: err}, "")
	}
	log.Info().Int("bytes", len(payload)).Msg("Successfully downloaded data from the timesheet API")

	key, err := r.store(ctx, payload)
	if err != nil {
		return r.fail(err, key)
	}

	msg := fmt.Sprintf("Successfully uploaded file %s to bucket %s.", key, r.cfg.Bucket)
	log.Info().Str("bucket", r.cfg.Bucket).Str("key", key).Msg(msg)
	return Result{
		Status:  http.StatusOK,
		Message: msg,
		Bucket:  r.cfg.Bucket,
		Key:     key,
	}
}

// store computes the destination key and uploads payload. Key computation is
// part of this phase, so a panic from either step is an UnexpectedError.
func (r *Relay) store(ctx context.Context, payload []byte) (key string, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &UnexpectedError{Value: v}
		}
	}()

	key = ObjectKey(r.now())
	logger.Log.Info().Str("bucket", r.cfg.Bucket).Str("key", key).Msg("Uploading data to object storage")

	if err := r.uploader.UploadObject(ctx, r.cfg.Bucket, key, payload, storage.ContentTypeJSON); err != nil {
		return key, &StorageError{Err: err}
	}
	return key, nil
}

func (r *Relay) fail(err error, key string) Result {
	logger.Log.Error().Err(unwrapped(err)).Str("key", key).Msg(err.Error())
	return Result{
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
		Bucket:  r.cfg.Bucket,
		Key:     key,
		Err:     err,
	}
}

func newConfigError(err error) *ConfigError {
	var missing *config.MissingEnvError
	if errors.As(err, &missing) {
		return &ConfigError{Key: missing.Key, Err: err}
	}
	return &ConfigError{Err: err}
}

func unwrapped(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}
