package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("remote service unreachable")

	// ErrInsufficientBalance matches an *APIError that reports exhausted credits.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMalformedResponse indicates a 2xx response whose body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response from remote service")
)

// User-visible texts produced by UserMessage.
const (
	MsgGeneric             = "Something went wrong. Please try again."
	MsgInsufficientBalance = "Insufficient balance. Please top up your credits to continue."
)

// insufficientBalanceCodes are body codes equivalent to HTTP 402.
var insufficientBalanceCodes = []string{
	"insufficient_balance",
	"insufficient_credits",
	"payment_required",
}

// APIError is a non-2xx response (or a 2xx response with success=false).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("remote returned HTTP %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrInsufficientBalance) match both the 402 status
// and the equivalent body codes.
func (e *APIError) Is(target error) bool {
	if target != ErrInsufficientBalance {
		return false
	}
	if e.StatusCode == http.StatusPaymentRequired {
		return true
	}
	for _, code := range insufficientBalanceCodes {
		if strings.EqualFold(e.Code, code) {
			return true
		}
	}
	return false
}

// IsInsufficientBalanceCode reports whether code (as sent in a stream error
// event) means the account is out of credits.
func IsInsufficientBalanceCode(code string) bool {
	return (&APIError{Code: code}).Is(ErrInsufficientBalance)
}

// UserMessage normalizes any failure from this package into the text shown
// to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInsufficientBalance) {
		return MsgInsufficientBalance
	}
	return MsgGeneric
}
