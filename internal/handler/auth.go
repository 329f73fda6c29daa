package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seatwatch/internal/model"
	"seatwatch/internal/repository"
	"seatwatch/internal/utils"
	"seatwatch/internal/validate"
)

// AuthHandler implements holder registration and login. Successful
// logins issue a short-lived HS256 access token whose subject is the
// holder ID.
type AuthHandler struct {
	Holders    *repository.HolderRepo
	JWTSecret  string
	TTLMin     int
	BcryptCost int
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(holders *repository.HolderRepo, secret string, ttlMin, bcryptCost int) *AuthHandler {
	if holders == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	return &AuthHandler{Holders: holders, JWTSecret: secret, TTLMin: ttlMin, BcryptCost: bcryptCost}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register handles POST /v1/auth/register. It creates a holder with a
// bcrypt-hashed password and returns the new holder's ID.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed"})
	}
	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hash password"})
	}
	holder := &model.Holder{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.Holders.Create(c.Request().Context(), holder); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": holder.ID})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /v1/auth/login. On success it returns an access
// token and its expiry. Unknown email and wrong password are not
// distinguished in the response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed"})
	}
	holder, err := h.Holders.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrHolderNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !utils.VerifyPassword(holder.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAccessToken(h.JWTSecret, holder.ID, h.TTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp.Format(time.RFC3339),
	})
}
