package middleware // package middleware holds the Echo middleware shared by all routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxProfileID = "profile_id"
	CtxRoles     = "roles"
)

// JWTAuth validates the Bearer session token and stores the profile id
// (uint64) and roles ([]string) in the request context.  Requests without
// a valid token are answered with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseSessionToken(secret, raw, time.Now())
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, _ := claims.ProfileID()
			c.Set(CtxProfileID, id)
			c.Set(CtxRoles, claims.Roles)
			return next(c)
		}
	}
}
