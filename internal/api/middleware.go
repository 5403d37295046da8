package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const userKey = "userID"

// identifyUser stores the caller-supplied user ID on the context.
func identifyUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(UserHeader))
		if id == "" {
			id = DefaultUserID
		}
		c.Set(userKey, id)
		return next(c)
	}
}

func userID(c echo.Context) string {
	if id, ok := c.Get(userKey).(string); ok && id != "" {
		return id
	}
	return DefaultUserID
}

// observe logs and measures every request. Errors are rendered here so the
// recorded status matches what the client saw.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		if err := next(c); err != nil {
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Response().Status

		s.deps.Metrics.RecordHTTPRequest(c.Request().Method, route, status, elapsed)
		s.logger.Debug("HTTP request",
			"method", c.Request().Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"user_id", userID(c))
		return nil
	}
}
