package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"seatwatch/internal/engine"
	"seatwatch/internal/model"
	"seatwatch/internal/validate"
)

const detectionTimeout = 30 * time.Second

// DetectionHandler ingests camera frames over HTTP, a fallback for
// deployments that cannot run the queue consumer.
type DetectionHandler struct {
	Engine *engine.Engine
}

type detectionRegion struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type detectionVerdict struct {
	SeatID  uint64 `json:"seat_id" validate:"required"`
	Present bool   `json:"present"`
}

// Malformed regions are not rejected up front: the overlay drops and
// counts them so one bad box never fails the rest of the frame.
type detectionRequest struct {
	FrameID  string             `json:"frame_id"`
	At       time.Time          `json:"at"`
	Regions  []detectionRegion  `json:"regions"`
	Verdicts []detectionVerdict `json:"verdicts" validate:"dive"`
}

// IngestFrame handles POST /v1/detections.
func (h *DetectionHandler) IngestFrame(c echo.Context) error {
	var req detectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed frame payload")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	frame := engine.Frame{ID: req.FrameID, At: req.At}
	if frame.ID == "" {
		frame.ID = uuid.NewString()
	}
	for _, r := range req.Regions {
		frame.Regions = append(frame.Regions, model.Region{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2})
	}
	for _, v := range req.Verdicts {
		frame.Verdicts = append(frame.Verdicts, engine.SeatVerdict{SeatID: v.SeatID, Present: v.Present})
	}

	ctx, cancel := contextWithTimeout(c, detectionTimeout)
	defer cancel()

	result, err := h.Engine.ApplyFrame(ctx, frame)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not apply frame")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"frame_id":    frame.ID,
		"seats":       result.Seats,
		"transitions": result.Transitions,
		"dropped":     result.Dropped,
		"failed":      result.Failed,
	})
}
