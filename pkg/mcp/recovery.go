package mcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// RecoveryAction determines how to handle an MCP call failure.
type RecoveryAction int

const (
	// NoRetry: bad request, auth failure, timeout or cancellation.
	NoRetry RecoveryAction = iota
	// RetrySameSession: transient, the session is still usable.
	RetrySameSession
	// RetryNewSession: the transport broke; reconnect first.
	RetryNewSession
)

func (a RecoveryAction) String() string {
	switch a {
	case RetrySameSession:
		return "retry_same_session"
	case RetryNewSession:
		return "retry_new_session"
	default:
		return "no_retry"
	}
}

const (
	// InitTimeout bounds transport setup plus the MCP handshake.
	InitTimeout = 30 * time.Second

	// ReinitTimeout bounds reconnecting during recovery.
	ReinitTimeout = 10 * time.Second

	// OperationTimeout is the per-call deadline for CallTool and ListTools.
	// The assistant's stream waits on these calls, so it stays well under
	// a minute.
	OperationTimeout = 45 * time.Second

	RetryBackoffMin = 250 * time.Millisecond
	RetryBackoffMax = 750 * time.Millisecond
)

// ClassifyError determines the recovery action for a call error.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry // slow server, retrying doubles the wait
		}
		return RetryNewSession
	}
	if isConnectionError(err) {
		return RetryNewSession
	}
	if containsAny(err, "rate limit", "too many requests", "temporarily unavailable") {
		return RetrySameSession
	}
	return NoRetry
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return containsAny(err,
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
	)
}

func containsAny(err error, needles ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
