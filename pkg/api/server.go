// Package api exposes the conversation engine to a local browser panel: a
// small JSON control surface over the session manager plus a WebSocket feed
// of render notifications.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/session"
)

// Server is the local control server.
type Server struct {
	echo *echo.Echo

	mu         sync.Mutex
	httpServer *http.Server

	cfg     *config.Config
	manager *session.Manager
	hub     *events.Hub
	logger  *slog.Logger

	// allowedOrigins restricts WebSocket upgrades; empty means same origin only.
	allowedOrigins []string

	// Turns started by the async endpoints outlive their request and are
	// canceled on Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
	turns   sync.WaitGroup
}

// NewServer wires the routes for manager and hub.
func NewServer(cfg *config.Config, manager *session.Manager, hub *events.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := echo.New()
	s := &Server{
		echo:    e,
		cfg:     cfg,
		manager: manager,
		hub:     hub,
		logger:  logger.With("component", "api"),
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.setupRoutes()
	return s
}

// SetAllowedOrigins sets the origin patterns accepted for WebSocket upgrades.
func (s *Server) SetAllowedOrigins(patterns []string) {
	s.allowedOrigins = patterns
}

func (s *Server) setupRoutes() {
	s.echo.Use(requestLogger(s.logger), securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/ws", s.wsHandler)
	s.echo.GET("/previews/:handle", s.previewHandler)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/state", s.stateHandler)
	v1.POST("/entity", s.selectEntityHandler)
	v1.POST("/new-chat", s.newChatHandler)
	v1.POST("/session/reload", s.reloadSessionHandler)
	v1.POST("/messages", s.sendMessageHandler)
	v1.POST("/options/:index", s.selectOptionHandler)
	v1.POST("/confirmation", s.confirmationHandler)
	v1.POST("/attachments", s.addAttachmentsHandler)
	v1.DELETE("/attachments", s.clearAttachmentsHandler)
	v1.DELETE("/attachments/:index", s.removeAttachmentHandler)
	v1.POST("/suggestions/apply-all", s.applyAllHandler)
	v1.POST("/suggestions/discard-all", s.discardAllHandler)
	v1.POST("/suggestions/:id/apply", s.applySuggestionHandler)
	v1.POST("/suggestions/:id/discard", s.discardSuggestionHandler)
	v1.POST("/images/actions", s.imageActionHandler)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.StartWithListener(ln)
}

// StartWithListener serves on an existing listener, which lets tests bind
// port 0 and learn the address before serving.
func (s *Server) StartWithListener(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Control server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels turns started through the API
// and waits for them to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.turns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// runTurn runs a turn already claimed on the manager in the background.
// Claims are made with the server's lifetime context so Shutdown cancels them.
func (s *Server) runTurn(name string, run func() error) {
	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			// The manager already published the user-visible error.
			s.logger.Warn("Turn failed", "operation", name, "error", err)
		}
	}()
}
