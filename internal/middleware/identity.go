package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserIDKey is the echo.Context key holding the acting user's id (uint64).
const UserIDKey = "user_id"

// Identity stores the acting user id on every request.  The service has no
// authentication, so every action is attributed to the configured default
// user.
func Identity(defaultUserID uint64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(UserIDKey, defaultUserID)
			return next(c)
		}
	}
}

// UserID returns the id stored by Identity, or false when none was set.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(UserIDKey).(uint64)
	return id, ok
}

// currentUserID renders the acting user for rate-limit keys.
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
