package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seatwatch/internal/notifier"
)

const streamKeepAlive = 30 * time.Second

// StreamHandler pushes live seat transitions to browsers over SSE.
type StreamHandler struct {
	Hub *notifier.Hub
}

// Stream handles GET /v1/seats/stream. It holds the connection open
// and writes one "transition" event per committed status change until
// the client goes away.
func (h *StreamHandler) Stream(c echo.Context) error {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.Hub.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			// comment lines keep proxies from timing out idle streams
			if _, err := fmt.Fprint(c.Response(), ": keep-alive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case t, open := <-events:
			if !open {
				return nil
			}
			body, err := json.Marshal(t)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Response(), "event: transition\ndata: %s\n\n", body); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
