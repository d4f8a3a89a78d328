// Package history keeps an operator-facing log of relay invocations. It is
// optional and never influences the relay response.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/google/uuid"
)

const (
	BackendNone     = "none"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	defaultMaxRuns = 100
)

// Run is one recorded invocation.
type Run struct {
	ID         string    `json:"id" db:"id"`
	Bucket     string    `json:"bucket,omitempty" db:"bucket"`
	Key        string    `json:"key,omitempty" db:"object_key"`
	Status     int       `json:"status" db:"status"`
	Message    string    `json:"message" db:"message"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
}

// NewRun fills in the ID and duration of a finished invocation.
func NewRun(bucket, key string, status int, message string, startedAt time.Time) Run {
	return Run{
		ID:         uuid.NewString(),
		Bucket:     bucket,
		Key:        key,
		Status:     status,
		Message:    message,
		StartedAt:  startedAt.UTC(),
		DurationMS: time.Since(startedAt).Milliseconds(),
	}
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	// Recent returns at most limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// New opens the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return NopStore{}, nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Record(context.Context, Run) error { return nil }

func (NopStore) Recent(context.Context, int) ([]Run, error) { return []Run{}, nil }

func (NopStore) Close() error { return nil }

func maxRuns(cfg config.HistoryConfig) int {
	if cfg.MaxRuns <= 0 {
		return defaultMaxRuns
	}
	return cfg.MaxRuns
}
