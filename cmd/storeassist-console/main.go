// storeassist-console is an interactive terminal harness around the
// conversation engine. It talks to the configured remote service, keeps host
// state in memory and can serve the local control API for a browser panel.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/storeassist/pkg/api"
	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/masking"
	"github.com/codeready-toolchain/storeassist/pkg/mcp"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/session"
	"github.com/codeready-toolchain/storeassist/pkg/tools"
	"github.com/codeready-toolchain/storeassist/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("STOREASSIST_CONFIG_DIR", "./config"),
		"Path to configuration directory")
	listen := flag.String("listen", "",
		"Serve the control API on this address (e.g. 127.0.0.1:8088)")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Host tools over MCP
	mem := host.NewMemory()
	mcpClient := mcp.NewClient(cfg.MCPServerRegistry, logger)
	defer func() {
		if err := mcpClient.Close(); err != nil {
			slog.Error("Error closing MCP client", "error", err)
		}
	}()
	var executor host.ToolExecutor
	if cfg.MCPServerRegistry.Len() > 0 {
		mcpClient.Connect(ctx)
		if failed := mcpClient.FailedServers(); len(failed) > 0 {
			slog.Warn("Some MCP servers failed to connect", "failed_servers", failed)
		}
		toolExec := mcp.NewExecutor(mcpClient, logger)
		toolExec.SetMasker(masking.NewService(cfg.MCPServerRegistry, logger))
		executor = tools.NewParallelExecutor(toolExec.Call, tools.DefaultConcurrency)
	}

	// 3. Notification hub and session manager
	hub := events.NewHub(10*time.Second, logger)
	manager := session.NewManager(ctx, session.Options{
		Config:    cfg,
		Remote:    remote.NewClient(cfg.Remote, cfg.Remote.Token(), logger),
		Host:      mem.Host(executor),
		Publisher: hub,
		Logger:    logger,
	})
	defer manager.Close()

	out := color.Output
	r := newRenderer(out)
	unsubscribe := hub.Subscribe(r.render)
	defer unsubscribe()

	// 4. Optional control API
	var server *api.Server
	if *listen != "" {
		server = api.NewServer(cfg, manager, hub, logger)
		go func() {
			if err := server.Start(*listen); err != nil {
				slog.Error("Control server error", "error", err)
				stop()
			}
		}()
	}

	color.New(color.FgCyan, color.Bold).Fprintln(out, version.Full())
	color.New(color.FgHiBlack).Fprintln(out, "Type /help for commands.")

	c := newConsole(manager, mem, out, logger)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if quit := c.handle(ctx, line); quit {
				break loop
			}
		}
	}

	// Graceful shutdown
	stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Control server shutdown error", "error", err)
		}
	}
	c.wait()
}
