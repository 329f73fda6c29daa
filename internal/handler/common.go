package handler

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
)

// getHolderID extracts the authenticated holder's ID injected by the
// JWT middleware.
func getHolderID(c echo.Context) (uint64, error) {
	id, ok := c.Get("holder_id").(uint64)
	if !ok || id == 0 {
		return 0, errors.New("no holder in context")
	}
	return id, nil
}

// contextWithTimeout derives a bounded context from the request so
// mutations cannot hold seat locks past the caller's patience.
func contextWithTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
