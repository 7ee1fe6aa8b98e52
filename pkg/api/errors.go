package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/session"
	"github.com/codeready-toolchain/storeassist/pkg/suggestion"
)

// mapSessionError maps manager errors to HTTP error responses.
func mapSessionError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, session.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "a request is already in progress")
	case errors.Is(err, session.ErrNoSession):
		return echo.NewHTTPError(http.StatusConflict, "no active session")
	case errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrInvalidEntity),
		errors.Is(err, session.ErrNoOption),
		errors.Is(err, session.ErrActionNotAvailable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrImageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	case errors.Is(err, suggestion.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "suggestion not found")
	case errors.Is(err, session.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant is shutting down")
	case errors.Is(err, remote.ErrInsufficientBalance):
		return echo.NewHTTPError(http.StatusPaymentRequired, remote.MsgInsufficientBalance)
	}

	var apiErr *remote.APIError
	if errors.As(err, &apiErr) || errors.Is(err, remote.ErrTransport) || errors.Is(err, remote.ErrMalformedResponse) {
		return echo.NewHTTPError(http.StatusBadGateway, remote.UserMessage(err))
	}

	slog.Error("Unexpected session error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
