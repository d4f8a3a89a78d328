package history

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/andresuchdata/timesheet-relay/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/semaphore"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS relay_runs (
	id          TEXT PRIMARY KEY,
	bucket      TEXT NOT NULL DEFAULT '',
	object_key  TEXT NOT NULL DEFAULT '',
	status      INTEGER NOT NULL,
	message     TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
)`

// PostgresStore records runs in the relay_runs table.
type PostgresStore struct {
	db      *sqlx.DB
	sem     *semaphore.Weighted
	maxRuns int
}

// NewPostgresStore connects with cfg.DBDriver ("postgres" for lib/pq, "pgx" for
// pgx's database/sql driver) and ensures the table exists.
func NewPostgresStore(ctx context.Context, cfg config.HistoryConfig) (*PostgresStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be provided for the postgres history backend")
	}

	driver := cfg.DBDriver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, createRunsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create relay_runs: %w", err)
	}

	return newPostgresStore(db, maxRuns(cfg)), nil
}

func newPostgresStore(db *sqlx.DB, maxRuns int) *PostgresStore {
	return &PostgresStore{
		db:      db,
		sem:     semaphore.NewWeighted(2),
		maxRuns: maxRuns,
	}
}

// withTx executes a function within a transaction
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer s.sem.Release(1)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Record inserts run and prunes anything beyond the newest maxRuns rows.
func (s *PostgresStore) Record(ctx context.Context, run Run) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO relay_runs (id, bucket, object_key, status, message, started_at, duration_ms)
			VALUES (:id, :bucket, :object_key, :status, :message, :started_at, :duration_ms)`, run)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM relay_runs
			WHERE id NOT IN (SELECT id FROM relay_runs ORDER BY started_at DESC LIMIT $1)`, s.maxRuns)
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		return nil
	})
}

// Recent returns the newest runs first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > s.maxRuns {
		limit = s.maxRuns
	}

	runs := make([]Run, 0, limit)
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, bucket, object_key, status, message, started_at, duration_ms
		FROM relay_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
