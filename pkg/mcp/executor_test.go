package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/masking"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/tools"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	client := newTestClient(t, map[string]map[string]mcpsdk.ToolHandler{
		"catalog": {
			"get_product": func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				var args map[string]any
				_ = json.Unmarshal(req.Params.Arguments, &args)
				return textResult(`{"id":"` + args["id"].(string) + `","title":"Mug"}`), nil
			},
			"summary": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return textResult("12 products, 3 categories"), nil
			},
			"broken": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return &mcpsdk.CallToolResult{IsError: true, Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "permission denied"}}}, nil
			},
			"huge": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return textResult(strings.Repeat("line of text\n", 10000)), nil
			},
		},
		"orders": {
			"recent_orders": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return textResult(`[{"id":1}]`), nil
			},
			"summary": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return textResult("orders summary"), nil
			},
		},
	})
	return NewExecutor(client, nil)
}

func TestExecutor_Call(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		tool   string
		params map[string]any
		want   any
	}{
		{"qualified json", "catalog.get_product", map[string]any{"id": "42"}, json.RawMessage(`{"id":"42","title":"Mug"}`)},
		{"double underscore", "catalog__summary", nil, "12 products, 3 categories"},
		{"bare name", "recent_orders", nil, json.RawMessage(`[{"id":1}]`)},
		{"bare name picks first server", "summary", nil, "12 products, 3 categories"},
		{"qualified second server", "orders.summary", nil, "orders summary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exec.Call(ctx, tt.tool, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutor_Errors(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	_, err := exec.Call(ctx, "catalog.broken", nil)
	assert.ErrorContains(t, err, "permission denied")

	_, err = exec.Call(ctx, "nowhere", nil)
	assert.True(t, errors.Is(err, ErrToolNotFound))

	_, err = exec.Call(ctx, "shipping.rates", nil)
	assert.ErrorContains(t, err, "not connected")
}

func TestExecutor_TruncatesLargeResults(t *testing.T) {
	exec := newTestExecutor(t)
	got, err := exec.Call(context.Background(), "catalog.huge", nil)
	require.NoError(t, err)
	text := got.(string)
	assert.LessOrEqual(t, len(text), DefaultMaxResultBytes+100)
	assert.Contains(t, text, "[TRUNCATED")
}

func TestExecutor_AsBatchExecutor(t *testing.T) {
	exec := newTestExecutor(t)
	batch := tools.NewParallelExecutor(exec.Call, 2)

	results, err := batch.Execute(context.Background(), []models.ToolRequest{
		{ID: "t1", Name: "catalog.get_product", Params: map[string]any{"id": "7"}},
		{ID: "t2", Name: "catalog.broken"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.JSONEq(t, `{"id":"7","title":"Mug"}`, string(results[0].Result))
	assert.Contains(t, results[1].Error, "permission denied")
}

func TestExecutor_MasksResults(t *testing.T) {
	client := newTestClient(t, map[string]map[string]mcpsdk.ToolHandler{
		"customers": {
			"get_customer": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return textResult(`{"name":"Ann","email":"ann@example.com","api_token":"tok-123"}`), nil
			},
			"failing": func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return &mcpsdk.CallToolResult{IsError: true, Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "no access for ann@example.com"}}}, nil
			},
		},
	})
	exec := NewExecutor(client, nil)
	exec.SetMasker(masking.NewService(config.NewMCPServerRegistry(map[string]*config.MCPServerConfig{
		"customers": {
			Transport:   config.TransportConfig{Type: config.TransportTypeStdio, Command: "echo"},
			DataMasking: &config.MaskingConfig{Enabled: true, PatternGroups: []string{"all"}},
		},
	}), nil))

	got, err := exec.Call(context.Background(), "customers.get_customer", nil)
	require.NoError(t, err)
	raw, ok := got.(json.RawMessage)
	require.True(t, ok, "masked JSON should stay JSON")
	assert.JSONEq(t, `{"name":"Ann","email":"__MASKED_EMAIL__","api_token":"***"}`, string(raw))

	_, err = exec.Call(context.Background(), "customers.failing", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "ann@example.com")
	assert.Contains(t, err.Error(), "__MASKED_EMAIL__")
}
