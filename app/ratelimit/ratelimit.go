package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

// Counter increments the hit count for key within a window that expires
// after ttl and returns the count after the increment.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// KeyFunc picks the identity a request is counted against.
type KeyFunc func(c echo.Context) string

// ByIP counts requests per client address.
func ByIP(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// ByActorOrIP counts authenticated requests per actor and anonymous ones
// per client address.
func ByActorOrIP(c echo.Context) string {
	if actor := auth.ActorFromContext(c); actor != nil {
		return "user:" + actor.ID
	}
	return ByIP(c)
}

type Limiter struct {
	counter Counter
	scope   string
	limit   int
	window  time.Duration
	keyFunc KeyFunc
	now     func() time.Time
	logger  logrus.FieldLogger
}

func NewLimiter(counter Counter, scope string, limit int, window time.Duration, keyFunc KeyFunc) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if keyFunc == nil {
		keyFunc = ByIP
	}
	return &Limiter{
		counter: counter,
		scope:   scope,
		limit:   limit,
		window:  window,
		keyFunc: keyFunc,
		now:     time.Now,
		logger:  factory.NewModuleLogger("rate-limiter"),
	}
}

func (l *Limiter) windowStart(now time.Time) time.Time {
	return now.Truncate(l.window)
}

func (l *Limiter) key(c echo.Context, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", l.scope, l.keyFunc(c), windowStart.Unix())
}

// Middleware enforces a fixed-window limit. Counter failures let the request
// through.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.limit <= 0 {
				return next(c)
			}

			now := l.now()
			start := l.windowStart(now)
			reset := start.Add(l.window)

			count, err := l.counter.Incr(c.Request().Context(), l.key(c, start), l.window)
			if err != nil {
				l.logger.WithError(err).WithField("scope", l.scope).Warn("rate limit counter unavailable, allowing request")
				return next(c)
			}

			remaining := int64(l.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			header.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if count > int64(l.limit) {
				retryAfter := int64(reset.Sub(now).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				header.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				return c.JSON(http.StatusTooManyRequests, &types.ErrorResponse{Error: "too many requests"})
			}
			return next(c)
		}
	}
}
