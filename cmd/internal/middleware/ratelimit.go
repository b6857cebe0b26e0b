package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"selfbooking/cmd/internal/config"
	"selfbooking/cmd/internal/utils"
	"selfbooking/cmd/internal/utils/apierror"
)

// tokenBucket refills whole intervals lazily and takes one token per call.
// Returns {allowed, tokens_left, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + intervals * refill_tokens)
		last_refill = last_refill + intervals * interval_ms
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// RateLimit is a per-caller token bucket kept in Redis. With no client or
// when disabled it passes everything through; Redis errors fail open.
func RateLimit(cfg config.RateLimit, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg.Prefix, c)
			res, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				log.Warnf("rate limit check failed for %s: %v", key, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] != 1 {
				secs := int(math.Ceil(float64(res[2]) / 1000))
				h.Set("Retry-After", strconv.Itoa(secs))
				apierr := apierror.TooManyRequestsError.With("retry_after", secs)
				return c.JSON(http.StatusTooManyRequests, apierr)
			}
			return next(c)
		}
	}
}

// buildRateKey buckets authenticated callers by user and everyone else by IP.
func buildRateKey(prefix string, c echo.Context) string {
	parts := []string{prefix}
	if data, err := utils.ParseTokenDataCtx(c); err == nil && data.UserID != 0 {
		parts = append(parts, "user", strconv.Itoa(data.UserID))
	} else {
		ip := c.RealIP()
		if ip == "" {
			ip = "unknown"
		}
		parts = append(parts, "ip", ip)
	}
	return strings.Join(parts, ":")
}
