package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"seatwatch/internal/config"
	"seatwatch/internal/handler"
	"seatwatch/internal/middleware"
)

// RegisterRoutes registers the routes that never require a session.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the register and login endpoints under
// /v1/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterSeats registers the public seat browse endpoints. The list
// and count endpoints sit behind the Redis response cache because the
// dashboard polls them; the cache is invalidated on every booking
// mutation. The SSE stream is public so wall displays can subscribe
// without a session.
func RegisterSeats(e *echo.Echo, s *handler.SeatHandler, st *handler.StreamHandler, cache config.CacheConfig, rdb *redis.Client) {
	cached := middleware.ResponseCache(cache, rdb)
	e.GET("/v1/seats", s.GetSeats, cached)
	e.GET("/v1/seats/count", s.GetSeatCount, cached)
	e.GET("/v1/seats/stream", st.Stream)
	e.GET("/v1/seats/:id", s.GetSeat)
}

// RegisterProtected registers every endpoint that requires an access
// token: booking, cancellation, seat administration, the HTTP
// detection fallback and the manual sweep trigger. Reserve is rate
// limited per holder so a stuck client cannot hammer the seat locks.
func RegisterProtected(e *echo.Echo, cfg *config.Config, rdb *redis.Client,
	r *handler.ReservationHandler, s *handler.SeatHandler,
	d *handler.DetectionHandler, sw *handler.SweepHandler) {

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))

	auth.POST("/seats/:id/reserve", r.Reserve, middleware.TokenBucket(config.LoadRateLimitConfig(), rdb))
	auth.GET("/my-reservation", r.MyReservation)
	auth.DELETE("/reservations/:id", r.Cancel)

	auth.POST("/seats", s.CreateSeats)
	auth.POST("/detections", d.IngestFrame)
	auth.POST("/admin/sweep", sw.RunSweep)
}
