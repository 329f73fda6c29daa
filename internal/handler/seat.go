package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"seatwatch/internal/engine"
	"seatwatch/internal/model"
	"seatwatch/internal/repository"
	"seatwatch/internal/validate"
)

// SeatHandler serves the seat map read endpoints and seat layout
// administration. Reads go straight to the repository; the engine is
// not involved since no status is being decided.
type SeatHandler struct {
	Seats *repository.SeatRepo
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(seats *repository.SeatRepo) *SeatHandler {
	if seats == nil {
		panic("nil repository passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats}
}

// GetSeats handles GET /v1/seats. It returns every seat with its
// geometry and current reconciled status for rendering the live map.
func (h *SeatHandler) GetSeats(c echo.Context) error {
	seats, err := h.Seats.GetAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seats})
}

// GetSeatCount handles GET /v1/seats/count. It returns the number of
// currently vacant seats, mirroring the counter shown on the home page.
func (h *SeatHandler) GetSeatCount(c echo.Context) error {
	n, err := h.Seats.CountByStatus(c.Request().Context(), model.StatusVacant)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{"vacant_seats": n})
}

// GetSeat handles GET /v1/seats/:id.
func (h *SeatHandler) GetSeat(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	seat, err := h.Seats.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": seat})
}

type createSeatRequest struct {
	Label string `json:"label" validate:"required,min=1,max=50"`
	X1    int    `json:"x1"`
	Y1    int    `json:"y1"`
	X2    int    `json:"x2" validate:"gtfield=X1"`
	Y2    int    `json:"y2" validate:"gtfield=Y1"`
}

// CreateSeats handles POST /v1/seats. It accepts a JSON array of seat
// definitions and inserts them in one statement. New seats start
// Vacant; geometry is immutable after creation.
func (h *SeatHandler) CreateSeats(c echo.Context) error {
	var body struct {
		Seats []createSeatRequest `json:"seats" validate:"required,min=1,dive"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed"})
	}
	seats := make([]model.Seat, 0, len(body.Seats))
	for _, s := range body.Seats {
		seats = append(seats, model.Seat{
			Label:  s.Label,
			Region: model.Region{X1: s.X1, Y1: s.Y1, X2: s.X2, Y2: s.Y2},
		})
	}
	if err := h.Seats.CreateBulk(c.Request().Context(), seats); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create seats"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": len(seats)})
}
