package middleware

import "github.com/labstack/echo/v4"

// userID returns the authenticated subject stored by JWTAuth, or "anon"
// when the request is unauthenticated.
func userID(c echo.Context) string {
	if s, ok := c.Get(UserIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
