package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seatwatch/internal/engine"
)

const sweepTimeout = 2 * time.Minute

// SweepHandler exposes the expiry sweep for operators; the scheduled
// sweeper covers normal operation.
type SweepHandler struct {
	Engine *engine.Engine
}

// RunSweep handles POST /v1/admin/sweep.
func (h *SweepHandler) RunSweep(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, sweepTimeout)
	defer cancel()

	report, err := h.Engine.RunExpirySweep(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "sweep failed")
	}
	return c.JSON(http.StatusOK, report)
}
