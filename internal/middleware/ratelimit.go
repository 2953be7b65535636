package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/config"
)

// takeScript refills the bucket for the whole intervals elapsed since the
// last refill, then spends one token if any are left.  It returns
// {allowed, tokens_left, retry_after_ms}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'refilled_at')
local tokens = tonumber(state[1])
local refilled_at = tonumber(state[2])
if tokens == nil or refilled_at == nil then
	tokens = capacity
	refilled_at = now_ms
end

local steps = math.floor(math.max(0, now_ms - refilled_at) / interval_ms)
if steps > 0 then
	tokens = math.min(capacity, tokens + steps * refill)
	refilled_at = refilled_at + steps * interval_ms
end

local allowed = 0
local wait_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	wait_ms = math.max(0, interval_ms - (now_ms - refilled_at))
end

redis.call('HSET', key, 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, wait_ms}
`)

type bucketState struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

// NewTokenBucket limits requests with a token bucket kept in Redis so that
// every instance behind the same balancer draws from one budget.  A nil
// client or a disabled config yields a pass-through.  Redis errors let the
// request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			st, err := take(c.Request().Context(), rdb, cfg, key, time.Now())
			if err != nil {
				log.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
			if st.allowed {
				return next(c)
			}

			secs := int((st.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Info("rate limited", zap.String("key", key), zap.Duration("retry_after", st.wait))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"retry_after": secs,
			})
		}
	}
}

func take(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bucketState, error) {
	vals, err := takeScript.Run(ctx, rdb, []string{key},
		now.UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketState{}, err
	}
	if len(vals) != 3 {
		return bucketState{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}
	return bucketState{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		wait:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// buildRateKey scopes a bucket by client IP, by route template, or by both.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "route":
		parts = append(parts, "route", route)
	default:
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}
