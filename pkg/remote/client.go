// Package remote is the HTTP client for the remote conversation service:
// session creation and history, message sends with event-stream negotiation,
// and suggestion apply/discard.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/version"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

const eventStreamType = "text/event-stream"

// Client talks to the remote conversation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	headers    map[string]string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a client from configuration. token may be empty.
// The HTTP client has no overall timeout so event streams can run as long as
// the caller's context allows; cfg.Timeout bounds time-to-headers and whole
// non-streaming exchanges.
func NewClient(cfg *config.RemoteConfig, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      token,
		headers:    cfg.Headers,
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "remote"),
	}
}

// CreateSession requests a new session and returns its id.
func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := c.doJSON(ctx, http.MethodPost, "/sessions", req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	var resp struct {
		Session *struct {
			ID json.RawMessage `json:"id"`
		} `json:"session"`
		SessionID json.RawMessage `json:"session_id"`
		ID        json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(unwrapEnvelope(body, "session", "session_id", "id"), &resp); err != nil {
		return "", fmt.Errorf("create session: %w: %v", ErrMalformedResponse, err)
	}

	var id string
	switch {
	case resp.Session != nil:
		id = rawID(resp.Session.ID)
	case len(resp.SessionID) > 0:
		id = rawID(resp.SessionID)
	default:
		id = rawID(resp.ID)
	}
	if id == "" {
		return "", fmt.Errorf("create session: %w: no session id", ErrMalformedResponse)
	}
	return id, nil
}

// GetSession fetches persisted messages and still-pending suggestions.
// Bare and {"success","data"} enveloped bodies are equivalent.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionHistory, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var resp struct {
		Messages           []wireMessage     `json:"messages"`
		PendingSuggestions []json.RawMessage `json:"pending_suggestions"`
		Session            *struct {
			Messages           []wireMessage     `json:"messages"`
			PendingSuggestions []json.RawMessage `json:"pending_suggestions"`
		} `json:"session"`
	}
	if err := json.Unmarshal(unwrapEnvelope(body, "messages", "pending_suggestions", "session"), &resp); err != nil {
		return nil, fmt.Errorf("load session %s: %w: %v", sessionID, ErrMalformedResponse, err)
	}
	if resp.Session != nil && resp.Messages == nil {
		resp.Messages = resp.Session.Messages
		resp.PendingSuggestions = resp.Session.PendingSuggestions
	}

	history := &SessionHistory{
		Messages:           make([]models.Message, 0, len(resp.Messages)),
		PendingSuggestions: decodeSuggestions(resp.PendingSuggestions),
	}
	for i := range resp.Messages {
		history.Messages = append(history.Messages, resp.Messages[i].toModel())
	}
	return history, nil
}

// SendMessage posts msg and returns the reply. The caller must Close the
// reply. The request advertises event-stream support; the response
// Content-Type decides which Reply field is set.
func (c *Client) SendMessage(ctx context.Context, sessionID string, msg *MessageRequest) (*Reply, error) {
	path := "/sessions/" + url.PathEscape(sessionID) + "/messages"
	req, err := c.newRequest(ctx, http.MethodPost, path, msg)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	req.Header.Set("Accept", eventStreamType+", application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("send message: %w", decodeAPIError(resp))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == eventStreamType {
		c.logger.Debug("Streaming reply", "session_id", sessionID)
		return &Reply{Stream: resp.Body}, nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("send message: %w: %w", ErrTransport, err)
	}
	if err := checkSuccessFlag(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	parsed, err := decodeMessageResponse(body)
	if err != nil {
		return nil, fmt.Errorf("send message: %w: %v", ErrMalformedResponse, err)
	}
	return &Reply{JSON: parsed}, nil
}

// UpdateSuggestion applies or discards a suggestion on the remote session.
func (c *Client) UpdateSuggestion(ctx context.Context, sessionID, suggestionID string, action SuggestionAction) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	path := "/sessions/" + url.PathEscape(sessionID) + "/suggestions/" + url.PathEscape(suggestionID)
	payload := map[string]SuggestionAction{"action": action}
	if _, err := c.doJSON(ctx, http.MethodPatch, path, payload); err != nil {
		return fmt.Errorf("%s suggestion %s: %w", action, suggestionID, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.Full())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON performs a non-streaming exchange and returns the 2xx body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if err := checkSuccessFlag(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// errorBody covers {message,code}, {error:{message,code}}, {error:"..."} and
// {data:{message,code}}.
type errorBody struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
	Data    *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"data"`
}

func (b *errorBody) fill(apiErr *APIError) {
	apiErr.Message = b.Message
	apiErr.Code = b.Code
	if len(b.Error) > 0 {
		var s string
		if err := json.Unmarshal(b.Error, &s); err == nil {
			if apiErr.Message == "" {
				apiErr.Message = s
			}
		} else {
			var nested struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			}
			if err := json.Unmarshal(b.Error, &nested); err == nil {
				apiErr.Message = firstNonEmpty(apiErr.Message, nested.Message)
				apiErr.Code = firstNonEmpty(apiErr.Code, nested.Code)
			}
		}
	}
	if b.Data != nil {
		apiErr.Message = firstNonEmpty(apiErr.Message, b.Data.Message)
		apiErr.Code = firstNonEmpty(apiErr.Code, b.Data.Code)
	}
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	body.fill(apiErr)
	return apiErr
}

// checkSuccessFlag turns a 2xx {"success": false, ...} body into an APIError.
func checkSuccessFlag(status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Success == nil || *body.Success {
		return nil
	}
	apiErr := &APIError{StatusCode: status}
	body.fill(apiErr)
	return apiErr
}

// unwrapEnvelope returns the "data" member when the top-level object has none
// of the expected keys but carries a data object; otherwise body unchanged.
func unwrapEnvelope(body []byte, keys ...string) []byte {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return body
	}
	for _, k := range keys {
		if _, ok := top[k]; ok {
			return body
		}
	}
	data, ok := top["data"]
	if !ok {
		return body
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return body
	}
	return data
}

func decodeMessageResponse(body []byte) (*MessageResponse, error) {
	var resp struct {
		AssistantMessage json.RawMessage   `json:"assistant_message"`
		Suggestions      []json.RawMessage `json:"suggestions"`
		TokensUsed       json.RawMessage   `json:"tokens_used"`
	}
	if err := json.Unmarshal(unwrapEnvelope(body, "assistant_message", "suggestions", "tokens_used"), &resp); err != nil {
		return nil, err
	}

	out := &MessageResponse{
		Suggestions: decodeSuggestions(resp.Suggestions),
		TokensUsed:  decodeTokens(resp.TokensUsed),
	}
	if len(resp.AssistantMessage) > 0 && string(resp.AssistantMessage) != "null" {
		var text string
		if err := json.Unmarshal(resp.AssistantMessage, &text); err == nil {
			out.AssistantMessage = &models.Message{Role: models.RoleAssistant, Content: text}
		} else {
			var w wireMessage
			if err := json.Unmarshal(resp.AssistantMessage, &w); err != nil {
				return nil, err
			}
			msg := w.toModel()
			out.AssistantMessage = &msg
		}
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
