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
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/config"
)

// takeToken refills the bucket by whole intervals, then tries to take one
// token.  Returns {allowed, remaining, wait_ms}.
var takeToken = redis.NewScript(`
local cap, per, every, now, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens, at = tonumber(b[1]), tonumber(b[2])
if not tokens then
  tokens, at = cap, now
end
local n = math.floor(math.max(0, now - at) / every)
if n > 0 then
  tokens = math.min(cap, tokens + n * per)
  at = at + n * every
end
local ok, wait = 0, 0
if tokens >= 1 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - at))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// rateParts lists the key components per RATE_LIMIT_KEY_STRATEGY.  Unknown
// strategies use all three.
var rateParts = map[string][]string{
	"ip":         {"ip"},
	"user":       {"user"},
	"route":      {"route"},
	"ip_user":    {"ip", "user"},
	"ip_route":   {"ip", "route"},
	"user_route": {"user", "route"},
}

// RateOption tunes NewTokenBucket.
type RateOption func(*bucket)

// RateIdentity lets user-keyed strategies identify callers before Auth has
// run.  Credentials that fail to authenticate count as anonymous.
func RateIdentity(a Authenticator) RateOption {
	return func(b *bucket) { b.ident = a }
}

type bucket struct {
	cfg   config.RateLimitConfig
	rdb   *redis.Client
	ident Authenticator
	log   zerolog.Logger
}

type verdict struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

func (b *bucket) take(ctx context.Context, key string) (verdict, error) {
	res, err := takeToken.Run(ctx, b.rdb, []string{key},
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		time.Now().UnixMilli(),
		int64(b.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return verdict{}, err
	}
	if len(res) != 3 {
		return verdict{}, fmt.Errorf("limiter returned %d values", len(res))
	}
	return verdict{
		allowed:   res[0] == 1,
		remaining: res[1],
		wait:      time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a redis token bucket shared by
// every instance.  Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log zerolog.Logger, opts ...RateOption) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	b := &bucket{cfg: cfg, rdb: rdb, log: log.With().Str("component", "ratelimit").Logger()}
	for _, o := range opts {
		o(b)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := b.key(c)
			v, err := b.take(c.Request().Context(), key)
			if err != nil {
				b.log.Warn().Err(err).Str("key", key).Msg("limiter unavailable")
				return next(c)
			}

			hdr := c.Response().Header()
			hdr.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			hdr.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if cfg.Debug {
				hdr.Set("X-RateLimit-Key", key)
			}
			if v.allowed {
				return next(c)
			}

			secs := int((v.wait + time.Second - 1) / time.Second)
			hdr.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				b.log.Info().Str("key", key).Dur("wait", v.wait).Msg("request throttled")
			}
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func (b *bucket) key(c echo.Context) string {
	parts, ok := rateParts[strings.ToLower(b.cfg.KeyStrategy)]
	if !ok {
		parts = []string{"ip", "user", "route"}
	}
	out := make([]string, 0, 1+2*len(parts))
	out = append(out, b.cfg.Prefix)
	for _, p := range parts {
		var v string
		switch p {
		case "ip":
			if v = c.RealIP(); v == "" {
				v = "unknown"
			}
		case "user":
			v = b.caller(c)
		case "route":
			v = c.Request().Method + " " + c.Path()
		}
		out = append(out, p, v)
	}
	return strings.Join(out, ":")
}

func (b *bucket) caller(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	if b.ident != nil {
		if p, err := b.ident.Authenticate(c.Request()); err == nil && p.UserID > 0 {
			return strconv.FormatUint(p.UserID, 10)
		}
	}
	return "anon"
}
