package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/labstack/echo/v4"
)

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC 3339. A bare end date covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", common.ErrInvalidInput, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// dateRange reads the optional startDate and endDate query parameters.
func dateRange(c echo.Context) (service.DateRange, error) {
	var r service.DateRange
	if raw := strings.TrimSpace(c.QueryParam("startDate")); raw != "" {
		t, err := parseDate(raw, false)
		if err != nil {
			return r, err
		}
		r.Start = t
	}
	if raw := strings.TrimSpace(c.QueryParam("endDate")); raw != "" {
		t, err := parseDate(raw, true)
		if err != nil {
			return r, err
		}
		r.End = t
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return r, fmt.Errorf("%w: endDate is before startDate", common.ErrInvalidInput)
	}
	return r, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrInvalidInput, name)
	}
	return v, nil
}

func queryFloat(c echo.Context, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", common.ErrInvalidInput, name)
	}
	return v, nil
}

func queryScope(c echo.Context) (*model.Scope, error) {
	n, err := queryInt(c, "scope", 0)
	if err != nil || n == 0 {
		return nil, err
	}
	scope := model.Scope(n)
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: scope must be 1, 2 or 3", common.ErrInvalidInput)
	}
	return &scope, nil
}
