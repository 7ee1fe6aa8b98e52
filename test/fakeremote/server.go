// Package fakeremote is a scripted stand-in for the remote conversation
// service. It speaks the same REST and event-stream protocol and records
// every request so tests and the developer console can run without the real
// backend.
package fakeremote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Event is one streamed event. Data is marshalled as the data line.
type Event struct {
	Type string
	Data any
}

// ScriptEntry defines the reply to one message post. Exactly one of Events,
// JSON or Status is normally set.
type ScriptEntry struct {
	Events []Event // streamed as text/event-stream
	JSON   any     // returned as application/json
	Status int     // error status; Body is the error body

	Body any

	// Delay is waited between streamed events.
	Delay time.Duration
	// WaitCh blocks the stream after the first event until closed.
	WaitCh <-chan struct{}
	// BlockUntilCancelled keeps the stream open until the client goes away.
	BlockUntilCancelled bool
}

// Text is shorthand for a streamed reply carrying one assistant message.
func Text(content string) ScriptEntry {
	id := uuid.NewString()
	return ScriptEntry{Events: []Event{
		{Type: "message_start", Data: gin.H{"message_id": id}},
		{Type: "content_delta", Data: gin.H{"delta": content}},
		{Type: "message_end", Data: gin.H{"message_id": id, "content": content}},
		{Type: "done", Data: gin.H{}},
	}}
}

// Message is a recorded message post.
type Message struct {
	SessionID string
	Body      map[string]any
}

// SuggestionUpdate is a recorded PATCH of a suggestion.
type SuggestionUpdate struct {
	SessionID    string
	SuggestionID string
	Action       string
}

type sessionState struct {
	entityType string
	title      string
	messages   []gin.H
	pending    []gin.H
}

// Server is the fake service. The zero value is not usable; call New.
type Server struct {
	mu       sync.Mutex
	engine   *gin.Engine
	sessions map[string]*sessionState
	script   []ScriptEntry
	fallback ScriptEntry
	messages []Message
	updates  []SuggestionUpdate
	creates  []map[string]any
	failNext map[string]int
	token    string
	logger   *slog.Logger
}

// New creates a fake service. A non-empty token is required as bearer auth.
func New(token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:   gin.New(),
		sessions: make(map[string]*sessionState),
		failNext: make(map[string]int),
		fallback: Text("I can help with that."),
		token:    token,
		logger:   logger.With("component", "fakeremote"),
	}
	s.engine.Use(gin.Recovery(), s.auth)
	s.engine.POST("/sessions", s.createSession)
	s.engine.GET("/sessions/:id", s.getSession)
	s.engine.POST("/sessions/:id/messages", s.postMessage)
	s.engine.PATCH("/sessions/:id/suggestions/:sid", s.updateSuggestion)
	return s
}

// Start serves on an httptest listener. Close the returned server when done.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.engine)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Script queues replies, consumed in order by message posts.
func (s *Server) Script(entries ...ScriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, entries...)
}

// SetFallback sets the reply used once the script is exhausted.
func (s *Server) SetFallback(entry ScriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = entry
}

// FailNext makes the next n requests to route (for example "POST /sessions")
// fail with 500.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[route] = n
}

// SeedHistory installs a session with the given messages and pending
// suggestions, as GET /sessions/{id} will return them.
func (s *Server) SeedHistory(sessionID string, messages, pending []gin.H) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &sessionState{messages: messages, pending: pending}
}

// Messages returns the recorded message posts.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Updates returns the recorded suggestion updates.
func (s *Server) Updates() []SuggestionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SuggestionUpdate(nil), s.updates...)
}

// Creates returns the recorded session creation bodies.
func (s *Server) Creates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.creates...)
}

func (s *Server) auth(c *gin.Context) {
	if s.token != "" && c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	fail := s.failNext[route] > 0
	if fail {
		s.failNext[route]--
	}
	s.mu.Unlock()
	if fail {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) createSession(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	entityType, _ := body["entity_type"].(string)
	if entityType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "entity_type is required"})
		return
	}
	title, _ := body["title"].(string)

	id := uuid.NewString()
	s.mu.Lock()
	s.creates = append(s.creates, body)
	s.sessions[id] = &sessionState{entityType: entityType, title: title}
	s.mu.Unlock()

	s.logger.Debug("Session created", "session_id", id, "entity_type", entityType)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"session": gin.H{"id": id, "title": title}}})
}

func (s *Server) getSession(c *gin.Context) {
	s.mu.Lock()
	sess, ok := s.sessions[c.Param("id")]
	var messages, pending []gin.H
	if ok {
		messages = append([]gin.H{}, sess.messages...)
		pending = append([]gin.H{}, sess.pending...)
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"messages": messages, "pending_suggestions": pending}})
}

func (s *Server) postMessage(c *gin.Context) {
	id := c.Param("id")
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
		return
	}
	s.messages = append(s.messages, Message{SessionID: id, Body: body})
	if content, _ := body["content"].(string); content != "" {
		sess.messages = append(sess.messages, gin.H{"id": uuid.NewString(), "role": "user", "content": content})
	}
	entry := s.fallback
	if len(s.script) > 0 {
		entry = s.script[0]
		s.script = s.script[1:]
	}
	s.mu.Unlock()

	switch {
	case entry.Status != 0:
		c.JSON(entry.Status, entry.Body)
	case entry.JSON != nil:
		c.JSON(http.StatusOK, entry.JSON)
	default:
		s.stream(c, id, entry)
	}
}

// stream writes entry's events in the service's "event:"/"data:" framing.
func (s *Server) stream(c *gin.Context, sessionID string, entry ScriptEntry) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	var content strings.Builder
	for i, ev := range entry.Events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			s.logger.Error("Failed to encode scripted event", "type", ev.Type, "error", err)
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return
		}
		c.Writer.Flush()
		if ev.Type == "content_delta" {
			var d struct {
				Delta string `json:"delta"`
			}
			if json.Unmarshal(data, &d) == nil {
				content.WriteString(d.Delta)
			}
		}

		if i == 0 && entry.WaitCh != nil {
			select {
			case <-entry.WaitCh:
			case <-ctx.Done():
				return
			}
		}
		if entry.Delay > 0 {
			select {
			case <-time.After(entry.Delay):
			case <-ctx.Done():
				return
			}
		}
	}
	if entry.BlockUntilCancelled {
		<-ctx.Done()
		return
	}

	if content.Len() > 0 {
		s.mu.Lock()
		if sess, ok := s.sessions[sessionID]; ok {
			sess.messages = append(sess.messages, gin.H{"id": uuid.NewString(), "role": "assistant", "content": content.String()})
		}
		s.mu.Unlock()
	}
}

func (s *Server) updateSuggestion(c *gin.Context) {
	var body struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || (body.Action != "apply" && body.Action != "discard") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "action must be apply or discard"})
		return
	}
	id, sid := c.Param("id"), c.Param("sid")

	s.mu.Lock()
	s.updates = append(s.updates, SuggestionUpdate{SessionID: id, SuggestionID: sid, Action: body.Action})
	if sess, ok := s.sessions[id]; ok {
		for i, p := range sess.pending {
			if fmt.Sprint(p["id"]) == sid {
				sess.pending = append(sess.pending[:i], sess.pending[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true})
}
