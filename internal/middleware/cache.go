package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/config"
)

// cacheParts lists what goes into a key per CACHE_KEY_STRATEGY.  Path
// params are always appended.
var cacheParts = map[string][]string{
	"route":              {"route"},
	"route_query":        {"route", "q"},
	"method_route":       {"method", "route"},
	"method_route_query": {"method", "route", "q"},
}

// headers never replayed from the cache
var volatileHeaders = []string{"Content-Length", "X-Cache", HeaderRequestID}

// snapshot is a stored response.
type snapshot struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

func (s snapshot) encode() ([]byte, error) { return json.Marshal(s) }

func decodeSnapshot(bs []byte) (snapshot, bool) {
	var s snapshot
	if err := json.Unmarshal(bs, &s); err != nil || s.Status == 0 {
		return snapshot{}, false
	}
	return s, true
}

// recorder tees the response body, keeping at most limit bytes.
type recorder struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int64
	overflow bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && int64(r.body.Len()+len(b)) > r.limit {
			r.overflow = true
			r.body.Reset()
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

type responseCache struct {
	cfg   config.CacheConfig
	rdb   *redis.Client
	group string
	ttl   time.Duration
}

// key is prefix:group:sha1(parts).  The group segment lets a write drop
// every entry of one resource with a single SCAN.
func (rc *responseCache) key(c echo.Context) string {
	parts, ok := cacheParts[strings.ToLower(rc.cfg.KeyStrategy)]
	if !ok {
		parts = cacheParts["route_query"]
	}
	h := sha1.New()
	for _, p := range parts {
		var v string
		switch p {
		case "method":
			v = c.Request().Method
		case "route":
			v = c.Path()
		case "q":
			v = c.Request().URL.RawQuery
		}
		h.Write([]byte(p + "=" + v + ";"))
	}
	for _, v := range c.ParamValues() {
		h.Write([]byte("p=" + v + ";"))
	}
	return groupPrefix(rc.cfg, rc.group) + ":" + hex.EncodeToString(h.Sum(nil))
}

func (rc *responseCache) replay(c echo.Context, s snapshot) {
	hdr := c.Response().Header()
	for k, vals := range s.Header {
		for _, v := range vals {
			hdr.Add(k, v)
		}
	}
	hdr.Set("X-Cache", "HIT")
	c.Response().WriteHeader(s.Status)
	if len(s.Body) > 0 {
		_, _ = c.Response().Write(s.Body)
	}
}

func (rc *responseCache) store(ctx context.Context, key string, c echo.Context, rec *recorder) {
	if rec.status != http.StatusOK || rec.overflow {
		return
	}
	hdr := c.Response().Header().Clone()
	for _, k := range volatileHeaders {
		hdr.Del(k)
	}
	bs, err := snapshot{Status: rec.status, Header: hdr, Body: rec.body.Bytes()}.encode()
	if err != nil {
		return
	}
	_ = rc.rdb.SetEx(context.WithoutCancel(ctx), key, bs, rc.ttl).Err()
}

func groupPrefix(cfg config.CacheConfig, group string) string {
	return cfg.Prefix + ":" + group
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewRedisCache caches 200 responses of group, headers included, so a hit
// replays the original response.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, group string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	rc := &responseCache{cfg: cfg, rdb: rdb, group: group, ttl: cfg.TTL}
	if rc.ttl <= 0 {
		rc.ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := rc.key(c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if s, ok := decodeSnapshot(bs); ok {
					rc.replay(c, s)
					return nil
				}
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			rc.store(ctx, key, c, rec)
			return nil
		}
	}
}

// InvalidateCache drops every cached entry of groups after a successful
// write.  Failures are logged; the next TTL expiry repairs them.
func InvalidateCache(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger, groups ...string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil || len(groups) == 0 {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || c.Request().Method == http.MethodGet || c.Response().Status >= 400 {
				return err
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
			defer cancel()
			for _, g := range groups {
				if n, derr := dropGroup(ctx, rdb, groupPrefix(cfg, g)); derr != nil {
					log.Warn().Err(derr).Str("group", g).Msg("cache invalidation failed")
				} else if n > 0 {
					log.Debug().Str("group", g).Int("keys", n).Msg("cache invalidated")
				}
			}
			return nil
		}
	}
}

// dropGroup unlinks every key under prefix.
func dropGroup(ctx context.Context, rdb *redis.Client, prefix string) (int, error) {
	dropped := 0
	iter := rdb.Scan(ctx, 0, prefix+":*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := rdb.Unlink(ctx, batch...).Err(); err != nil {
			return err
		}
		dropped += len(batch)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return dropped, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return dropped, err
	}
	return dropped, flush()
}
