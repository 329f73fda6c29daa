package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"seatwatch/internal/config"
	"seatwatch/internal/engine"
	"seatwatch/internal/middleware"
)

// reserveTimeout bounds an interactive reservation request. On timeout
// the transaction rolls back; the operation is failed, never partially
// applied.
const reserveTimeout = 5 * time.Second

// ReservationHandler exposes the reservation operations. All mutations
// go through the engine so the availability check and the ledger write
// commit as one unit under the seat's lock.
type ReservationHandler struct {
	Engine *engine.Engine
	Cache  config.CacheConfig
	Redis  *redis.Client // nil disables cache invalidation
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(eng *engine.Engine, cache config.CacheConfig, rdb *redis.Client) *ReservationHandler {
	if eng == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: eng, Cache: cache, Redis: rdb}
}

// Reserve handles POST /v1/seats/:id/reserve. Two concurrent requests
// for the same seat yield exactly one 201 and one 409. A seat that is
// Occupied without a reservation is bookable by policy.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	holderID, err := getHolderID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	seatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || seatID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	ctx, cancel := contextWithTimeout(c, reserveTimeout)
	defer cancel()
	res, err := h.Engine.Reserve(ctx, seatID, holderID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrSeatNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		case errors.Is(err, engine.ErrSeatUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "seat not available"})
		case errors.Is(err, engine.ErrTxConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "try again"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve seat"})
	}
	h.invalidateSeatCache()
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"seat_id":        res.SeatID,
		"start_time":     res.StartTime.Format(time.RFC3339),
		"end_time":       res.EndTime.Format(time.RFC3339),
	})
}

// MyReservation handles GET /v1/my-reservation. It returns the
// holder's active reservation, or an empty item when none exists.
func (h *ReservationHandler) MyReservation(c echo.Context) error {
	holderID, err := getHolderID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Engine.CurrentReservation(c.Request().Context(), holderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
	}
	if res == nil {
		return c.JSON(http.StatusOK, echo.Map{"item": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles DELETE /v1/reservations/:id. It retires the holder's
// own reservation early; the seat returns to Vacant unless detected
// presence already claimed it.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	holderID, err := getHolderID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := contextWithTimeout(c, reserveTimeout)
	defer cancel()
	if err := h.Engine.Cancel(ctx, resID, holderID); err != nil {
		switch {
		case errors.Is(err, engine.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, engine.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	h.invalidateSeatCache()
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) invalidateSeatCache() {
	middleware.InvalidateCache(h.Redis, h.Cache, "/v1/seats", "/v1/seats/count")
}
