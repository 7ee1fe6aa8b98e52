// Package tools resolves the data requests the remote assistant makes in
// the middle of a stream.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// ErrNoExecutor is returned when a data request arrives and the host has
// no tool executor.
var ErrNoExecutor = errors.New("no tool executor configured")

// Coordinator runs a batch of tool requests through the host executor and
// guarantees one result per request, in request order.
type Coordinator struct {
	executor host.ToolExecutor
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator. executor may be nil, in which case
// every batch fails with ErrNoExecutor.
func NewCoordinator(executor host.ToolExecutor, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{executor: executor, logger: logger.With("component", "tool-coordinator")}
}

// Handle resolves requests. Per-request failures are carried as error
// results; an error return means the batch could not be run at all and the
// turn should end.
func (c *Coordinator) Handle(ctx context.Context, requests []models.ToolRequest) ([]models.ToolResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if c.executor == nil {
		return nil, ErrNoExecutor
	}

	c.logger.Debug("Executing tool batch", "count", len(requests))
	results, err := c.executor.Execute(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("execute tool batch: %w", err)
	}

	byID := make(map[string]models.ToolResult, len(results))
	for _, r := range results {
		if _, dup := byID[r.ID]; !dup {
			byID[r.ID] = r
		}
	}

	out := make([]models.ToolResult, len(requests))
	for i, req := range requests {
		r, ok := byID[req.ID]
		switch {
		case !ok:
			c.logger.Warn("Executor returned no result for tool request", "tool_call_id", req.ID, "tool", req.Name)
			r = models.ToolResult{ID: req.ID, Error: fmt.Sprintf("no result for tool %q", req.Name)}
		case r.IsError():
			c.logger.Warn("Tool request failed", "tool_call_id", req.ID, "tool", req.Name, "error", r.Error)
		case len(r.Result) == 0:
			r.Result = json.RawMessage("null")
		}
		out[i] = r
	}
	return out, nil
}
