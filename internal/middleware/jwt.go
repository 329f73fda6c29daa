package middleware // reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's subject claim (the holder ID) into the
// request context. The provided secret must match the one used when
// issuing tokens. Handlers access the authenticated holder via
// c.Get("holder_id").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// sub is numeric in our tokens; jwt decodes numbers as float64.
			sub, ok := claims["sub"].(float64)
			if !ok || sub < 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set("holder_id", uint64(sub))
			return next(c)
		}
	}
}
