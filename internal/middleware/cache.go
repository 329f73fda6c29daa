package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"seatwatch/internal/config"
)

// ResponseCache returns a middleware that serves GET responses from
// Redis for a short TTL. It is applied to the seat map read endpoints
// only; the TTL is kept below one detection frame period so a cached
// seat status is never staler than one cycle. With no Redis client the
// middleware is a no-op.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := cacheKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			if body, err := rdb.Get(ctx, key).Bytes(); err == nil {
				c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}
			if rec.status == http.StatusOK && rec.buf.Len() <= cfg.MaxBodyBytes {
				// Best effort; a failed SET only costs the next request a DB read.
				rdb.Set(ctx, key, rec.buf.Bytes(), cfg.TTL)
			}
			return nil
		}
	}
}

func cacheKey(prefix string, c echo.Context) string {
	key := prefix + ":" + c.Path()
	if q := c.QueryString(); q != "" {
		key += "?" + q
	}
	return key
}

// bodyRecorder tees the response body so a 200 can be cached after it
// has been written to the client.
type bodyRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (r *bodyRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.status == http.StatusOK {
		r.buf.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// InvalidateCache removes cached entries for the given paths. Mutating
// handlers call this after a commit so the map reflects the new status
// immediately instead of after TTL expiry.
func InvalidateCache(rdb *redis.Client, cfg config.CacheConfig, paths ...string) {
	if rdb == nil || !cfg.Enabled {
		return
	}
	ctx, cancel := contextWithTimeout(500 * time.Millisecond)
	defer cancel()
	for _, p := range paths {
		rdb.Del(ctx, cfg.Prefix+":"+p)
	}
}
