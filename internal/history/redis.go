package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/redis/go-redis/v9"
)

const redisRunsKey = "timesheet-relay:runs"

// RedisStore keeps the latest runs in a capped redis list.
type RedisStore struct {
	client  *redis.Client
	maxRuns int
}

// NewRedisStore connects and pings redis.
func NewRedisStore(ctx context.Context, cfg config.HistoryConfig) (*RedisStore, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, maxRuns: maxRuns(cfg)}, nil
}

func buildRedisOptions(cfg config.HistoryConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// Record prepends run and trims the list to the configured size.
func (s *RedisStore) Record(ctx context.Context, run Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, redisRunsKey, payload)
		pipe.LTrim(ctx, redisRunsKey, 0, int64(s.maxRuns-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record failed: %w", err)
	}
	return nil
}

// Recent returns the newest runs first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > s.maxRuns {
		limit = s.maxRuns
	}

	raw, err := s.client.LRange(ctx, redisRunsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range failed: %w", err)
	}

	runs := make([]Run, 0, len(raw))
	for _, item := range raw {
		var run Run
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
