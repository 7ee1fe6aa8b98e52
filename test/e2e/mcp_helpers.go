package e2e

import (
	"context"
	"encoding/json"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/mcp"
)

// emptySchema is a minimal valid JSON Schema for test tools.
var emptySchema = json.RawMessage(`{"type":"object"}`)

// SetupInMemoryMCP creates in-memory MCP servers with scripted tool handlers
// and returns a real *mcp.Client connected to all of them, plus the registry
// holding their configs.
//
// servers maps serverID → (toolName → handler). masking optionally maps
// serverID → data masking settings.
func SetupInMemoryMCP(
	t *testing.T,
	servers map[string]map[string]mcpsdk.ToolHandler,
	masking map[string]*config.MaskingConfig,
) (*mcp.Client, *config.MCPServerRegistry) {
	t.Helper()

	// Stub configs so the registry knows every server ID.
	mcpConfigs := make(map[string]*config.MCPServerConfig, len(servers))
	for serverID := range servers {
		mcpConfigs[serverID] = &config.MCPServerConfig{
			Transport: config.TransportConfig{
				Type:    config.TransportTypeStdio,
				Command: "mock", // Overridden by in-memory transport.
			},
			DataMasking: masking[serverID],
		}
	}
	registry := config.NewMCPServerRegistry(mcpConfigs)
	client := mcp.NewClient(registry, nil)

	for serverID, tools := range servers {
		server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverID, Version: "test"}, nil)
		for toolName, handler := range tools {
			server.AddTool(&mcpsdk.Tool{
				Name:        toolName,
				Description: "test tool: " + toolName,
				InputSchema: emptySchema,
			}, handler)
		}

		clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = server.Run(ctx, serverTransport) }()

		sdkClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "storeassist-e2e", Version: "test"}, nil)
		session, err := sdkClient.Connect(context.Background(), clientTransport, nil)
		require.NoError(t, err)

		client.InjectSession(serverID, sdkClient, session)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, registry
}

// StaticToolHandler returns an mcpsdk.ToolHandler that always returns the given text.
func StaticToolHandler(text string) mcpsdk.ToolHandler {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		}, nil
	}
}

// ToolErrorHandler returns an mcpsdk.ToolHandler whose result is flagged as
// a tool error.
func ToolErrorHandler(text string) mcpsdk.ToolHandler {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			IsError: true,
		}, nil
	}
}

// RecordingToolHandler returns text and sends the call arguments on calls.
func RecordingToolHandler(text string, calls chan<- map[string]any) mcpsdk.ToolHandler {
	return func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args map[string]any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			_ = json.Unmarshal(req.Params.Arguments, &args)
		}
		select {
		case calls <- args:
		default:
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		}, nil
	}
}
