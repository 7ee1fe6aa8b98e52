package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.RemoteConfig{
		BaseURL: server.URL + "/api/",
		Timeout: 5 * time.Second,
		Headers: map[string]string{"X-Store-Id": "store-1"},
	}, "tok-123", nil)
}

func TestCreateSession(t *testing.T) {
	t.Run("sends entity snapshot and headers", func(t *testing.T) {
		var got map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/sessions", r.URL.Path)
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			assert.Equal(t, "store-1", r.Header.Get("X-Store-Id"))
			assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "storeassist/"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"session":{"id":"sess-1"}}`))
		})

		entity := &models.Entity{Type: models.EntityTypeProduct, ID: "42", Title: "Mug", Fields: map[string]any{"price": "9.99"}}
		req := NewCreateSessionRequest(entity, "Mug", models.StoreContext{"currency": "EUR", "tagline": " "})

		id, err := client.CreateSession(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", id)

		assert.Equal(t, "product", got["entity_type"])
		assert.Equal(t, "42", got["product_id"])
		assert.Equal(t, map[string]any{"id": "42", "title": "Mug", "price": "9.99"}, got["product_data"])
		assert.Equal(t, map[string]any{"currency": "EUR"}, got["store_context"])
		assert.NotContains(t, got, "category_id")
	})

	t.Run("agent session carries no entity keys", func(t *testing.T) {
		var got map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"success":true,"data":{"session":{"id":7}}}`))
		})

		id, err := client.CreateSession(context.Background(),
			NewCreateSessionRequest(&models.Entity{Type: models.EntityTypeAgent}, "Store", nil))
		require.NoError(t, err)
		assert.Equal(t, "7", id)
		assert.Equal(t, "agent", got["entity_type"])
		assert.NotContains(t, got, "product_data")
		assert.NotContains(t, got, "store_context")
	})

	t.Run("missing id is malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"session":{}}`))
		})
		_, err := client.CreateSession(context.Background(), &CreateSessionRequest{EntityType: models.EntityTypeAgent})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestGetSessionEnvelopeTolerance(t *testing.T) {
	bare := `{"messages":[{"id":1,"role":"user","content":"hi","created_at":"2026-01-02T03:04:05Z"},{"id":"a2","role":"assistant","content":"hello","tokens_used":{"input":3,"output":5}}],` +
		`"pending_suggestions":[{"id":"s1","field":"title","current_value":"Mug","suggested_value":"Blue Mug"},{"bogus":true}]}`
	enveloped := `{"success":true,"data":` + bare + `}`

	for name, body := range map[string]string{"bare": bare, "enveloped": enveloped} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/sessions/sess%2F1", r.URL.EscapedPath())
				_, _ = w.Write([]byte(body))
			})

			history, err := client.GetSession(context.Background(), "sess/1")
			require.NoError(t, err)

			require.Len(t, history.Messages, 2)
			assert.Equal(t, "1", history.Messages[0].ID)
			assert.Equal(t, models.RoleUser, history.Messages[0].Role)
			assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), history.Messages[0].CreatedAt)
			assert.Equal(t, &models.TokenUsage{Input: 3, Output: 5}, history.Messages[1].Usage)

			require.Len(t, history.PendingSuggestions, 1, "undecodable suggestions are skipped")
			assert.Equal(t, "s1", history.PendingSuggestions[0].ID)
			assert.Equal(t, "Blue Mug", history.PendingSuggestions[0].SuggestedValue)
		})
	}
}

func TestSendMessage(t *testing.T) {
	t.Run("event stream reply", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.Header.Get("Accept"), "text/event-stream")
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Write a title", body["content"])
			w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
			_, _ = w.Write([]byte("event: done\ndata: {}\n\n"))
		})

		reply, err := client.SendMessage(context.Background(), "s1", &MessageRequest{Content: "Write a title"})
		require.NoError(t, err)
		defer reply.Close()

		require.NotNil(t, reply.Stream)
		assert.Nil(t, reply.JSON)
		data, err := io.ReadAll(reply.Stream)
		require.NoError(t, err)
		assert.Equal(t, "event: done\ndata: {}\n\n", string(data))
	})

	t.Run("json reply", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"assistant_message":"Try this","suggestions":[{"id":"s9","field":"description","suggested_value":"New"}],"tokens_used":42}`))
		})

		reply, err := client.SendMessage(context.Background(), "s1", &MessageRequest{QuickAction: "improve_title"})
		require.NoError(t, err)
		require.NotNil(t, reply.JSON)
		assert.Nil(t, reply.Stream)
		assert.Equal(t, "Try this", reply.JSON.AssistantMessage.Content)
		assert.Equal(t, models.RoleAssistant, reply.JSON.AssistantMessage.Role)
		require.Len(t, reply.JSON.Suggestions, 1)
		assert.Equal(t, &models.TokenUsage{Output: 42}, reply.JSON.TokensUsed)
		assert.NoError(t, reply.Close())
	})

	t.Run("tool results payload", func(t *testing.T) {
		var body map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = w.Write([]byte(`{}`))
		})

		_, err := client.SendMessage(context.Background(), "s1", ToolResultsRequest([]models.ToolResult{
			{ID: "c1", Result: json.RawMessage(`{"orders":3}`)},
			{ID: "c2", Error: "not found"},
		}))
		require.NoError(t, err)

		assert.Equal(t, "tool", body["role"])
		assert.Equal(t, []any{
			map[string]any{"tool_call_id": "c1", "result": map[string]any{"orders": float64(3)}},
			map[string]any{"tool_call_id": "c2", "error": "not found"},
		}, body["tool_results"])
		assert.NotContains(t, body, "content")
	})
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantCode     string
		wantMessage  string
		insufficient bool
	}{
		{name: "402 without body", status: http.StatusPaymentRequired, insufficient: true},
		{name: "code in flat body", status: http.StatusBadRequest, body: `{"message":"No credits","code":"insufficient_credits"}`, wantCode: "insufficient_credits", wantMessage: "No credits", insufficient: true},
		{name: "nested error object", status: http.StatusForbidden, body: `{"error":{"message":"Out of balance","code":"INSUFFICIENT_BALANCE"}}`, wantCode: "INSUFFICIENT_BALANCE", wantMessage: "Out of balance", insufficient: true},
		{name: "data envelope", status: http.StatusConflict, body: `{"success":false,"data":{"message":"Busy","code":"busy"}}`, wantCode: "busy", wantMessage: "Busy"},
		{name: "error string", status: http.StatusInternalServerError, body: `{"error":"boom"}`, wantMessage: "boom"},
		{name: "html body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.SendMessage(context.Background(), "s1", &MessageRequest{Content: "x"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.insufficient, errors.Is(err, ErrInsufficientBalance))

			want := MsgGeneric
			if tt.insufficient {
				want = MsgInsufficientBalance
			}
			assert.Equal(t, want, UserMessage(err))
		})
	}
}

func TestSuccessFalseOn200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Suggestion already resolved","code":"conflict"}`))
	})

	err := client.UpdateSuggestion(context.Background(), "s1", "sg1", ActionApply)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "conflict", apiErr.Code)
}

func TestUpdateSuggestion(t *testing.T) {
	var gotPath, gotMethod string
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.UpdateSuggestion(context.Background(), "s1", "sg1", ActionDiscard))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/sessions/s1/suggestions/sg1", gotPath)
	assert.Equal(t, map[string]string{"action": "discard"}, body)
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(&config.RemoteConfig{BaseURL: server.URL}, "", nil)
	_, err := client.SendMessage(context.Background(), "s1", &MessageRequest{Content: "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, MsgGeneric, UserMessage(err))
}

func TestIsInsufficientBalanceCode(t *testing.T) {
	assert.True(t, IsInsufficientBalanceCode("insufficient_balance"))
	assert.False(t, IsInsufficientBalanceCode("rate_limited"))
	assert.False(t, IsInsufficientBalanceCode(""))
	assert.Empty(t, UserMessage(nil))
}
