// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewClient builds an instrumented client from either host:port or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})
	return rdb, nil
}

// Connect returns a pinged client for addr, or nil when addr is empty or
// Redis is unreachable. Callers treat nil as "run without Redis".
func Connect(ctx context.Context, addr string) *redis.Client {
	if addr == "" {
		middleware.Logger.Warn("redis disabled: REDIS_URL is empty")
		return nil
	}
	rdb, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("redis disabled: invalid REDIS_URL", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unreachable, continuing without it", "addr", rdb.Options().Addr, "error", err)
		_ = rdb.Close()
		return nil
	}
	middleware.Logger.Info("redis connected", "addr", rdb.Options().Addr)
	return rdb
}
