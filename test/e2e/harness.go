// Package e2e provides end-to-end test infrastructure for the assistant:
// the real control server, session manager and remote client talking to a
// scripted remote service, with host tools served by in-memory MCP servers.
package e2e

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/api"
	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/masking"
	"github.com/codeready-toolchain/storeassist/pkg/mcp"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/session"
	"github.com/codeready-toolchain/storeassist/pkg/tools"
	"github.com/codeready-toolchain/storeassist/test/fakeremote"
)

const testToken = "e2e-token"

// TestApp boots a complete assistant instance for e2e testing.
type TestApp struct {
	// Core
	Config *config.Config

	// Mocks / test wiring
	Remote *fakeremote.Server
	Host   *host.Memory
	MCP    *mcp.Client // real client backed by in-memory MCP SDK servers

	// Real infrastructure
	Hub     *events.Hub
	Manager *session.Manager
	Server  *api.Server

	// Runtime
	BaseURL string // e.g. "http://127.0.0.1:54321"
	WSURL   string // e.g. "ws://127.0.0.1:54321/ws"

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	cfg           *config.Config
	mcpServers    map[string]map[string]mcpsdk.ToolHandler
	masking       map[string]*config.MaskingConfig
	toolLimit     int
	maxToolRounds int
	balance       *float64
	store         models.StoreContext
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig sets a custom config.
func WithConfig(cfg *config.Config) TestAppOption {
	return func(c *testAppConfig) { c.cfg = cfg }
}

// WithMCPServers sets in-memory MCP SDK servers that answer data requests.
// Maps serverID → (toolName → handler).
func WithMCPServers(servers map[string]map[string]mcpsdk.ToolHandler) TestAppOption {
	return func(c *testAppConfig) { c.mcpServers = servers }
}

// WithDataMasking enables tool result masking for an MCP server.
func WithDataMasking(serverID string, m *config.MaskingConfig) TestAppOption {
	return func(c *testAppConfig) {
		if c.masking == nil {
			c.masking = make(map[string]*config.MaskingConfig)
		}
		c.masking[serverID] = m
	}
}

// WithToolConcurrency caps how many tool calls of one batch run at once.
func WithToolConcurrency(n int) TestAppOption {
	return func(c *testAppConfig) { c.toolLimit = n }
}

// WithMaxToolRounds sets the per-turn data request limit.
func WithMaxToolRounds(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxToolRounds = n }
}

// WithInitialBalance seeds the host balance store.
func WithInitialBalance(b float64) TestAppOption {
	return func(c *testAppConfig) { c.balance = &b }
}

// WithStoreContext sets the store context sent on session creation.
func WithStoreContext(sc models.StoreContext) TestAppOption {
	return func(c *testAppConfig) { c.store = sc }
}

// NewTestApp creates and starts a full test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{toolLimit: 4}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.cfg == nil {
		tc.cfg = defaultTestConfig()
	}
	if tc.maxToolRounds > 0 {
		tc.cfg.Conversation.MaxToolRounds = tc.maxToolRounds
	}

	// 1. Scripted remote service.
	fake := fakeremote.New(testToken, nil)
	remoteServer := fake.Start()
	t.Cleanup(remoteServer.Close)
	tc.cfg.Remote.BaseURL = remoteServer.URL
	client := remote.NewClient(tc.cfg.Remote, testToken, nil)

	// 2. Host collaborators.
	mem := host.NewMemory()
	if tc.balance != nil {
		require.NoError(t, mem.SaveBalance(context.Background(), *tc.balance))
	}

	// 3. Host tools over MCP, if configured.
	var (
		mcpClient *mcp.Client
		executor  host.ToolExecutor
	)
	if len(tc.mcpServers) > 0 {
		var registry *config.MCPServerRegistry
		mcpClient, registry = SetupInMemoryMCP(t, tc.mcpServers, tc.masking)
		toolExec := mcp.NewExecutor(mcpClient, nil)
		toolExec.SetMasker(masking.NewService(registry, nil))
		executor = tools.NewParallelExecutor(toolExec.Call, tc.toolLimit)
	}

	// 4. Notification hub and session manager.
	hub := events.NewHub(5*time.Second, nil)
	manager := session.NewManager(context.Background(), session.Options{
		Config:    tc.cfg,
		Remote:    client,
		Host:      mem.Host(executor),
		Publisher: hub,
		Store:     tc.store,
	})

	// 5. HTTP server on random port.
	server := api.NewServer(tc.cfg, manager, hub, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = server.StartWithListener(ln)
	}()

	addr := ln.Addr().String()
	app := &TestApp{
		Config:  tc.cfg,
		Remote:  fake,
		Host:    mem,
		MCP:     mcpClient,
		Hub:     hub,
		Manager: manager,
		Server:  server,
		BaseURL: fmt.Sprintf("http://%s", addr),
		WSURL:   fmt.Sprintf("ws://%s/ws", addr),
		t:       t,
	}

	// Register cleanup in reverse-creation order.
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		manager.Close()
	})

	return app
}

// defaultTestConfig is the built-in config with animations shortened so
// balance tests finish quickly.
func defaultTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Balance.AnimationDuration = 20 * time.Millisecond
	cfg.Balance.FrameInterval = 5 * time.Millisecond
	return cfg
}
