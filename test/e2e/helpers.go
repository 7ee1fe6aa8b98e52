package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/api"
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

// SelectProduct stores a product in the host and makes it the active entity.
// Returns the new session ID.
func (app *TestApp) SelectProduct(t *testing.T, id, title string, fields map[string]any) string {
	t.Helper()
	app.Host.PutEntity(&models.Entity{Type: models.EntityTypeProduct, ID: id, Title: title, Fields: fields})
	var st api.StateResponse
	app.postJSON(t, "/api/v1/entity", api.SelectEntityRequest{
		EntityType: string(models.EntityTypeProduct),
		EntityID:   id,
		Title:      title,
		Fields:     fields,
	}, http.StatusOK, &st)
	require.NotEmpty(t, st.SessionID)
	return st.SessionID
}

// SelectAgent switches to the free-form agent entity.
func (app *TestApp) SelectAgent(t *testing.T) string {
	t.Helper()
	var st api.StateResponse
	app.postJSON(t, "/api/v1/entity", api.SelectEntityRequest{EntityType: string(models.EntityTypeAgent)}, http.StatusOK, &st)
	require.NotEmpty(t, st.SessionID)
	return st.SessionID
}

// SendMessage posts a user message and expects it to be accepted.
func (app *TestApp) SendMessage(t *testing.T, content string) {
	t.Helper()
	app.postJSON(t, "/api/v1/messages", api.SendMessageRequest{Content: content}, http.StatusAccepted, nil)
}

// SendMessageStatus posts a user message and returns the status code and
// the error message, if any.
func (app *TestApp) SendMessageStatus(t *testing.T, content string) (int, string) {
	t.Helper()
	resp := app.do(t, http.MethodPost, "/api/v1/messages", api.SendMessageRequest{Content: content})
	defer func() { _ = resp.Body.Close() }()
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body.Message
}

// ApplySuggestion applies one pending suggestion.
func (app *TestApp) ApplySuggestion(t *testing.T, id string) api.StateResponse {
	t.Helper()
	var st api.StateResponse
	app.postJSON(t, "/api/v1/suggestions/"+id+"/apply", nil, http.StatusOK, &st)
	return st
}

// State calls GET /api/v1/state.
func (app *TestApp) State(t *testing.T) api.StateResponse {
	t.Helper()
	var st api.StateResponse
	app.getJSON(t, "/api/v1/state", http.StatusOK, &st)
	return st
}

// Health calls GET /health.
func (app *TestApp) Health(t *testing.T) api.HealthResponse {
	t.Helper()
	var h api.HealthResponse
	app.getJSON(t, "/health", http.StatusOK, &h)
	return h
}

// WaitIdle waits until no turn is running and returns the state. A send is
// accepted before its turn starts, so callers first wait for the remote
// service to see the message or for turn.done.
func (app *TestApp) WaitIdle(t *testing.T) api.StateResponse {
	t.Helper()
	require.Eventually(t, func() bool {
		return !app.Manager.Busy()
	}, 10*time.Second, 20*time.Millisecond, "turn did not finish")
	return app.State(t)
}

// ConnectWS opens the notification feed and subscribes to channels. The
// connection is closed on test cleanup.
func (app *TestApp) ConnectWS(t *testing.T, channels ...string) *WSClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	ws, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_, err = ws.WaitForEventType("connection.established", 5*time.Second)
	require.NoError(t, err)

	for _, channel := range channels {
		require.NoError(t, ws.Subscribe(channel))
		_, err = ws.WaitForEvent(func(e WSEvent) bool {
			return e.Type == "subscription.confirmed" && e.Fields["channel"] == channel
		}, 5*time.Second)
		require.NoError(t, err, "subscribe %s", channel)
	}
	return ws
}

func (app *TestApp) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (app *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int, out any) {
	t.Helper()
	app.roundTrip(t, http.MethodPost, path, body, expectedStatus, out)
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int, out any) {
	t.Helper()
	app.roundTrip(t, http.MethodGet, path, nil, expectedStatus, out)
}

func (app *TestApp) roundTrip(t *testing.T, method, path string, body any, expectedStatus int, out any) {
	t.Helper()
	resp := app.do(t, method, path, body)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "%s %s: unexpected status: %s", method, path, data)
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}
