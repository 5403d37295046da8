package api

import (
	"fmt"
	"net/http"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/labstack/echo/v4"
)

func (s *Server) emissionsSummary(c echo.Context) error {
	period, err := dateRange(c)
	if err != nil {
		return err
	}
	summary, err := s.deps.Analytics.Summary(c.Request().Context(), userID(c), period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) emissionsTrend(c echo.Context) error {
	months, err := queryInt(c, "months", analytics.DefaultTrendPeriods)
	if err != nil {
		return err
	}
	if months <= 0 {
		months = analytics.DefaultTrendPeriods
	}
	trend, err := s.deps.Analytics.Trend(c.Request().Context(), userID(c), months)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, trend)
}

func (s *Server) budget(c echo.Context) error {
	target, err := queryFloat(c, "target", 0)
	if err != nil {
		return err
	}
	b, err := s.deps.Analytics.Budget(c.Request().Context(), userID(c), target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) benchmark(c echo.Context) error {
	period, err := dateRange(c)
	if err != nil {
		return err
	}
	revenue, err := queryFloat(c, "revenue", 0)
	if err != nil {
		return err
	}
	if revenue <= 0 {
		return fmt.Errorf("%w: revenue must be positive", common.ErrInvalidInput)
	}

	b, err := s.deps.Analytics.Benchmark(c.Request().Context(), userID(c), c.QueryParam("sector"), revenue, period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) opportunities(c echo.Context) error {
	period, err := dateRange(c)
	if err != nil {
		return err
	}
	ops, err := s.deps.Analytics.Opportunities(c.Request().Context(), userID(c), period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ops)
}

func (s *Server) carbonCost(c echo.Context) error {
	period, err := dateRange(c)
	if err != nil {
		return err
	}
	price, err := queryFloat(c, "price", 0)
	if err != nil {
		return err
	}
	cost, err := s.deps.Analytics.CarbonCost(c.Request().Context(), userID(c), price, period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cost)
}

func (s *Server) scopes(c echo.Context) error {
	period, err := dateRange(c)
	if err != nil {
		return err
	}
	breakdown, err := s.deps.Analytics.Scopes(c.Request().Context(), userID(c), period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, breakdown)
}
