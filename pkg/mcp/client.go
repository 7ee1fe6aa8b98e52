// Package mcp answers the assistant's data requests by calling tools on
// MCP (Model Context Protocol) servers configured in storeassist.yaml.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/version"
)

// Client holds one MCP SDK session per configured server. Safe for
// concurrent use; tool batches call it from several goroutines.
type Client struct {
	registry *config.MCPServerRegistry

	mu            sync.RWMutex
	sessions      map[string]*mcpsdk.ClientSession // serverID → session
	clients       map[string]*mcpsdk.Client        // serverID → client
	failedServers map[string]string                // serverID → error message

	// Tool lists, filled on first ListTools and dropped when a session is recreated.
	toolCache   map[string][]*mcpsdk.Tool
	toolCacheMu sync.RWMutex

	// Serializes (re)connects per server.
	reinitMu sync.Map // serverID → *sync.Mutex

	logger *slog.Logger
}

// NewClient creates a client for the servers in registry. Call Connect
// before use.
func NewClient(registry *config.MCPServerRegistry, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		registry:      registry,
		sessions:      make(map[string]*mcpsdk.ClientSession),
		clients:       make(map[string]*mcpsdk.Client),
		failedServers: make(map[string]string),
		toolCache:     make(map[string][]*mcpsdk.Tool),
		logger:        logger.With("component", "mcp"),
	}
}

// Connect connects to every configured server. Servers that fail are
// recorded and reported by FailedServers; the rest stay usable.
func (c *Client) Connect(ctx context.Context) {
	for _, serverID := range c.registry.ServerIDs() {
		if err := c.ConnectServer(ctx, serverID); err != nil {
			c.mu.Lock()
			c.failedServers[serverID] = err.Error()
			c.mu.Unlock()
			c.logger.Warn("MCP server failed to connect", "server", serverID, "error", err)
		}
	}
}

// ConnectServer connects to one server. No-op when already connected.
func (c *Client) ConnectServer(ctx context.Context, serverID string) error {
	mu := c.serverMutex(serverID)
	mu.Lock()
	defer mu.Unlock()
	return c.connectLocked(ctx, serverID)
}

// connectLocked requires the server's reinit mutex.
func (c *Client) connectLocked(ctx context.Context, serverID string) error {
	if c.HasSession(serverID) {
		return nil
	}

	serverCfg, err := c.registry.Get(serverID)
	if err != nil {
		return err
	}
	transport, err := createTransport(serverCfg.Transport)
	if err != nil {
		return fmt.Errorf("create transport for %q: %w", serverID, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		// stdio transports own a child process
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("connect to %q: %w", serverID, err)
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	c.clients[serverID] = client
	delete(c.failedServers, serverID)
	c.mu.Unlock()

	c.logger.Info("MCP server connected", "server", serverID)
	return nil
}

// ServerIDs returns the connected servers in configuration order.
func (c *Client) ServerIDs() []string {
	var ids []string
	for _, id := range c.registry.ServerIDs() {
		if c.HasSession(id) {
			ids = append(ids, id)
		}
	}
	// injected sessions that are not in the registry
	var extra []string
	c.mu.RLock()
	for id := range c.sessions {
		if !c.registry.Has(id) {
			extra = append(extra, id)
		}
	}
	c.mu.RUnlock()
	slices.Sort(extra)
	return append(ids, extra...)
}

// ListTools returns the tools of one server, cached after the first call.
func (c *Client) ListTools(ctx context.Context, serverID string) ([]*mcpsdk.Tool, error) {
	// Lock ordering: never acquire c.mu while holding toolCacheMu.
	c.toolCacheMu.RLock()
	if cached, ok := c.toolCache[serverID]; ok {
		c.toolCacheMu.RUnlock()
		return cached, nil
	}
	c.toolCacheMu.RUnlock()

	session, err := c.session(serverID)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()
	result, err := session.ListTools(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools from %q: %w", serverID, err)
	}

	tools := result.Tools
	if tools == nil {
		tools = []*mcpsdk.Tool{}
	}
	c.toolCacheMu.Lock()
	c.toolCache[serverID] = tools
	c.toolCacheMu.Unlock()
	return tools, nil
}

// CallTool calls a tool, retrying once after a jittered backoff when the
// failure looks like a broken transport.
func (c *Client) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	params := &mcpsdk.CallToolParams{Name: toolName, Arguments: args}

	result, err := c.callOnce(ctx, serverID, params)
	if err == nil {
		return result, nil
	}
	action := ClassifyError(err)
	if action == NoRetry {
		return nil, err
	}

	c.logger.Info("MCP call failed, retrying",
		"server", serverID, "tool", toolName, "action", action, "error", err)

	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if action == RetryNewSession {
		if err := c.recreateSession(ctx, serverID); err != nil {
			return nil, fmt.Errorf("reconnect %q: %w", serverID, err)
		}
	}

	result, err = c.callOnce(ctx, serverID, params)
	if err != nil {
		return nil, fmt.Errorf("retry %s.%s: %w", serverID, toolName, err)
	}
	return result, nil
}

func (c *Client) callOnce(ctx context.Context, serverID string, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	session, err := c.session(serverID)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()
	return session.CallTool(opCtx, params)
}

func (c *Client) recreateSession(ctx context.Context, serverID string) error {
	mu := c.serverMutex(serverID)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, exists := c.sessions[serverID]; exists {
		_ = session.Close()
		delete(c.sessions, serverID)
		delete(c.clients, serverID)
	}
	c.mu.Unlock()

	c.toolCacheMu.Lock()
	delete(c.toolCache, serverID)
	c.toolCacheMu.Unlock()

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()
	return c.connectLocked(reinitCtx, serverID)
}

func (c *Client) session(serverID string) (*mcpsdk.ClientSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.sessions[serverID]
	if !ok {
		return nil, fmt.Errorf("no session for server %q", serverID)
	}
	return session, nil
}

func (c *Client) serverMutex(serverID string) *sync.Mutex {
	mu, _ := c.reinitMu.LoadOrStore(serverID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// HasSession reports whether a server is connected.
func (c *Client) HasSession(serverID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.sessions[serverID]
	return exists
}

// FailedServers returns the servers that failed to connect.
func (c *Client) FailedServers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]string, len(c.failedServers))
	for k, v := range c.failedServers {
		result[k] = v
	}
	return result
}

// Close closes every session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", id, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	c.clients = make(map[string]*mcpsdk.Client)
	c.failedServers = make(map[string]string)

	// mu → toolCacheMu is safe: nothing holds toolCacheMu while taking mu.
	c.toolCacheMu.Lock()
	c.toolCache = make(map[string][]*mcpsdk.Tool)
	c.toolCacheMu.Unlock()
	return firstErr
}
