package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/pkg/locale"
)

// RateLimiterConfig конфигурация для rate limiter
type RateLimiterConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
}

type rateWindow struct {
	name   string
	limit  int
	period time.Duration
}

// RateLimiter middleware для ограничения количества запросов с одного IP
type RateLimiter struct {
	redis   *redis.Client
	windows []rateWindow
	logger  *zap.Logger
}

// NewRateLimiter создает новый экземпляр RateLimiter
func NewRateLimiter(redis *redis.Client, config RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		redis: redis,
		windows: []rateWindow{
			{name: "minute", limit: config.RequestsPerMinute, period: time.Minute},
			{name: "hour", limit: config.RequestsPerHour, period: time.Hour},
			{name: "day", limit: config.RequestsPerDay, period: 24 * time.Hour},
		},
		logger: logger,
	}
}

func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientIP := c.IP()
		if clientIP == "" {
			clientIP = "unknown"
		}

		exceeded, err := rl.hit(c.UserContext(), clientIP)
		if err != nil {
			// Redis недоступен: запрос пропускается
			rl.logger.Error("Rate limiter unavailable", zap.Error(err))
			return c.Next()
		}

		if exceeded != nil {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", c.Path()),
				zap.String("window", exceeded.name),
			)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(exceeded.period.Seconds())))
			return fiber.NewError(fiber.StatusTooManyRequests, locale.Get("too_many_requests"))
		}

		return c.Next()
	}
}

// hit увеличивает счетчики всех окон и возвращает первое превышенное окно
func (rl *RateLimiter) hit(ctx context.Context, clientIP string) (*rateWindow, error) {
	pipe := rl.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(rl.windows))
	for i, w := range rl.windows {
		cmds[i] = pipe.Incr(ctx, rl.key(clientIP, w.name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	var exceeded *rateWindow
	for i := range rl.windows {
		w := &rl.windows[i]
		count := cmds[i].Val()
		if count == 1 {
			rl.redis.Expire(ctx, rl.key(clientIP, w.name), w.period)
		}
		if exceeded == nil && w.limit > 0 && count > int64(w.limit) {
			exceeded = w
		}
	}
	return exceeded, nil
}

// ResetRateLimit сбрасывает счетчики для конкретного клиента
func (rl *RateLimiter) ResetRateLimit(ctx context.Context, clientIP string) error {
	pipe := rl.redis.Pipeline()
	for _, w := range rl.windows {
		pipe.Del(ctx, rl.key(clientIP, w.name))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (rl *RateLimiter) key(clientIP, window string) string {
	return fmt.Sprintf("rate_limit:%s:%s", clientIP, window)
}
