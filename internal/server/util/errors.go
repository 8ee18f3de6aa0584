package util

import (
	"context"
	"errors"
	"net/http"

	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/network"

	"github.com/labstack/echo/v4"
)

// StatusClientClosedRequest is used when the caller went away before the
// query finished. Nobody reads the response.
const StatusClientClosedRequest = 499

// QueryError maps a network query error to its response.
func QueryError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, network.ErrSuperseded):
		return c.JSON(http.StatusConflict, map[string]any{"error": "Superseded by a newer request", "superseded": true})
	case network.IsRetryable(err):
		logger.Error("[Server]["+op+"] Upstream failure", "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "Network data is temporarily unavailable", "retryable": true})
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("[Server]["+op+"] Query timed out", "err", err)
		return c.JSON(http.StatusGatewayTimeout, map[string]any{"error": "Query timed out", "retryable": true})
	case errors.Is(err, context.Canceled):
		return c.NoContent(StatusClientClosedRequest)
	default:
		logger.Error("[Server]["+op+"] Query failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
