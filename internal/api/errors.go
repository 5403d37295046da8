package api

import (
	"errors"
	"net/http"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
	"github.com/Veraticus/the-carbon-must-flow/internal/storage"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

var badRequestErrors = []error{
	common.ErrInvalidInput,
	parser.ErrStructural,
	engine.ErrUnsupportedFormat,
	engine.ErrNoValidTransactions,
	storage.ErrEmptyString,
	storage.ErrInvalidDateRange,
	storage.ErrInvalidTransaction,
	storage.ErrInvalidFactor,
	storage.ErrInvalidUpload,
}

// statusFor maps an application error onto an HTTP status code.
func statusFor(err error) int {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidStatus), errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, engine.ErrProcessorClosed):
		return http.StatusServiceUnavailable
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	resp := ErrorResponse{Message: err.Error()}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			resp.Message = msg
		} else {
			resp.Message = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("API error",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"code", code,
			"error", err)
		resp.Message = http.StatusText(code)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}
