package middleware

import (
	"context"
	"fmt"
	"os"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// CheckRateLimit reports whether id may perform another request against
// resource inside the current fixed window. Limits are not enforced when
// APP_ENV is "test" or "development".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true, nil
	}

	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated userID when present, otherwise by remote IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name)
}

// RateLimitWithPolicy is RateLimit with an explicit Redis failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = "ip:" + c.IP()
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, name, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
					"resource", name, "error", err.Error())
				return c.Status(fiber.StatusServiceUnavailable).JSON(
					models.ErrorEnvelope(fiber.StatusServiceUnavailable, models.CodeStore, "Rate limit unavailable"))
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(
				models.ErrorEnvelope(fiber.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"))
		}
		return c.Next()
	}
}
