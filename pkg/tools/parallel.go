package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// DefaultConcurrency bounds the calls a ParallelExecutor runs at once.
const DefaultConcurrency = 4

// ParallelExecutor adapts a single-call tool function into a batch
// executor. Calls run concurrently up to the limit; each call's error
// becomes that request's error string.
type ParallelExecutor struct {
	fn    host.ToolFunc
	limit int
}

var _ host.ToolExecutor = (*ParallelExecutor)(nil)

// NewParallelExecutor creates an executor. A limit below one uses
// DefaultConcurrency.
func NewParallelExecutor(fn host.ToolFunc, limit int) *ParallelExecutor {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &ParallelExecutor{fn: fn, limit: limit}
}

// Execute implements host.ToolExecutor.
func (p *ParallelExecutor) Execute(ctx context.Context, requests []models.ToolRequest) ([]models.ToolResult, error) {
	results := make([]models.ToolResult, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, req := range requests {
		g.Go(func() error {
			results[i] = p.call(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *ParallelExecutor) call(ctx context.Context, req models.ToolRequest) (res models.ToolResult) {
	res.ID = req.ID
	defer func() {
		if r := recover(); r != nil {
			res = models.ToolResult{ID: req.ID, Error: fmt.Sprintf("tool %s panicked: %v", req.Name, r)}
		}
	}()

	value, err := p.fn(ctx, req.Name, req.Params)
	if err != nil {
		res.Error = err.Error()
		if res.Error == "" {
			res.Error = fmt.Sprintf("tool %s failed", req.Name)
		}
		return res
	}
	if raw, ok := value.(json.RawMessage); ok {
		res.Result = raw
		return res
	}
	data, err := json.Marshal(value)
	if err != nil {
		res.Error = fmt.Sprintf("encode result of %s: %v", req.Name, err)
		return res
	}
	res.Result = data
	return res
}

// Registry maps tool names to functions. It is itself a ToolFunc.
type Registry map[string]host.ToolFunc

// Call dispatches to the named tool.
func (r Registry) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	fn, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return fn(ctx, name, params)
}
