package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// ProfileID returns the authenticated profile id set by JWTAuth.
func ProfileID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxProfileID).(uint64)
	return id, ok && id > 0
}

// Roles returns the session roles set by JWTAuth.
func Roles(c echo.Context) []string {
	roles, _ := c.Get(CtxRoles).([]string)
	return roles
}

// rateIdentity names the caller for rate limit keys: the profile id when
// signed in, "anon" otherwise.
func rateIdentity(c echo.Context) string {
	if id, ok := ProfileID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
