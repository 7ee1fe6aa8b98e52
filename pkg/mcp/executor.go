package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/storeassist/pkg/host"
)

// ErrToolNotFound is returned when no connected server offers a tool.
var ErrToolNotFound = errors.New("tool not found")

// ResultMasker redacts sensitive data from a server's tool output.
type ResultMasker interface {
	MaskToolResult(content, serverID string) string
}

// Executor resolves single tool requests against the connected servers.
// Its Call method is a host.ToolFunc.
type Executor struct {
	client         *Client
	masker         ResultMasker
	maxResultBytes int
	logger         *slog.Logger
}

var _ host.ToolFunc = (*Executor)(nil).Call

// NewExecutor creates an executor over client.
func NewExecutor(client *Client, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client:         client,
		maxResultBytes: DefaultMaxResultBytes,
		logger:         logger.With("component", "mcp-executor"),
	}
}

// SetMasker makes Call pass every text result, errors included, through m
// before it leaves the executor.
func (e *Executor) SetMasker(m ResultMasker) {
	e.masker = m
}

// Call runs one tool. name is "server.tool", "server__tool", or a bare
// tool name resolved against the first connected server that lists it.
// Results that are valid JSON are returned as json.RawMessage, other text
// as a string. A tool reporting IsError becomes an error.
func (e *Executor) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	serverID, toolName, err := e.resolve(ctx, NormalizeToolName(name))
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := e.client.CallTool(ctx, serverID, toolName, params)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", serverID, toolName, err)
	}

	text := extractTextContent(result, e.logger)
	if text == "" && result.StructuredContent != nil && !result.IsError {
		if e.masker == nil {
			return result.StructuredContent, nil
		}
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s result: %w", serverID, toolName, err)
		}
		text = string(raw)
	}
	if e.masker != nil {
		text = e.masker.MaskToolResult(text, serverID)
	}
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, fmt.Errorf("%s.%s: %s", serverID, toolName, text)
	}

	text = Truncate(text, e.maxResultBytes)
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	return text, nil
}

func (e *Executor) resolve(ctx context.Context, name string) (serverID, toolName string, err error) {
	if IsQualified(name) {
		serverID, toolName, err = SplitToolName(name)
		if err != nil {
			return "", "", err
		}
		if !e.client.HasSession(serverID) {
			return "", "", fmt.Errorf("MCP server %q is not connected", serverID)
		}
		return serverID, toolName, nil
	}

	for _, id := range e.client.ServerIDs() {
		tools, err := e.client.ListTools(ctx, id)
		if err != nil {
			e.logger.Warn("Failed to list tools from MCP server", "server", id, "error", err)
			continue
		}
		if slices.ContainsFunc(tools, func(t *mcpsdk.Tool) bool { return t.Name == name }) {
			return id, name, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrToolNotFound, name)
}

// extractTextContent concatenates the text items of a result. Other
// content kinds are skipped.
func extractTextContent(result *mcpsdk.CallToolResult, logger *slog.Logger) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			logger.Debug("MCP tool returned non-text content, skipping",
				"content_type", fmt.Sprintf("%T", c))
		}
	}
	return strings.Join(parts, "\n")
}
