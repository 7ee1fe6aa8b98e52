package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/session"
	"github.com/codeready-toolchain/storeassist/pkg/suggestion"
)

func TestMapSessionError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "busy maps to 409",
			err:        session.ErrBusy,
			expectCode: http.StatusConflict,
			expectMsg:  "already in progress",
		},
		{
			name:       "no session maps to 409",
			err:        fmt.Errorf("send: %w", session.ErrNoSession),
			expectCode: http.StatusConflict,
			expectMsg:  "no active session",
		},
		{
			name:       "invalid entity maps to 400",
			err:        fmt.Errorf("%w: type %q", session.ErrInvalidEntity, "order"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "invalid entity",
		},
		{
			name:       "unavailable image action maps to 400",
			err:        fmt.Errorf("%w: set_thumbnail", session.ErrActionNotAvailable),
			expectCode: http.StatusBadRequest,
			expectMsg:  "set_thumbnail",
		},
		{
			name:       "unknown image maps to 404",
			err:        session.ErrImageNotFound,
			expectCode: http.StatusNotFound,
			expectMsg:  "image not found",
		},
		{
			name:       "unknown suggestion maps to 404",
			err:        fmt.Errorf("apply s9: %w", suggestion.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "suggestion not found",
		},
		{
			name:       "closed manager maps to 503",
			err:        session.ErrClosed,
			expectCode: http.StatusServiceUnavailable,
			expectMsg:  "shutting down",
		},
		{
			name:       "insufficient balance maps to 402",
			err:        &remote.APIError{StatusCode: http.StatusPaymentRequired, Message: "no credits"},
			expectCode: http.StatusPaymentRequired,
			expectMsg:  remote.MsgInsufficientBalance,
		},
		{
			name:       "remote failure maps to 502",
			err:        fmt.Errorf("create session: %w", &remote.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}),
			expectCode: http.StatusBadGateway,
		},
		{
			name:       "transport failure maps to 502",
			err:        fmt.Errorf("%w: connection refused", remote.ErrTransport),
			expectCode: http.StatusBadGateway,
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapSessionError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
