package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to redisURL (e.g. "redis://localhost:6379/0"), installs
// the metrics hook and verifies the connection.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(NewMetricsHook(m))
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
