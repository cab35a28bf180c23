package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RixGem/progresspath/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrNoRun is returned when no refresh run has been recorded yet (or
// the record expired).
var ErrNoRun = errors.New("no refresh run recorded")

// RunSummaryCache records the last refresh run so operators can poll
// the status endpoint instead of reading logs.
type RunSummaryCache interface {
	RecordRun(ctx context.Context, summary models.RunSummary, ttl time.Duration) error
	LastRun(ctx context.Context) (*models.RunSummary, error)
	Close() error
}

type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(redisURL, prefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) RecordRun(ctx context.Context, summary models.RunSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+"refresh:last_run", data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (r *RedisClient) LastRun(ctx context.Context) (*models.RunSummary, error) {
	data, err := r.client.Get(ctx, r.prefix+"refresh:last_run").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &summary, nil
}
