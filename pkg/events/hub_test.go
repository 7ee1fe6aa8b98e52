package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(5*time.Second, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		hub.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(func() { server.Close() })
	return hub, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func subscribeWS(t *testing.T, hub *Hub, conn *websocket.Conn, channel string) {
	t.Helper()
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: channel})
	msg := readJSON(t, conn)
	require.Equal(t, "subscription.confirmed", msg["type"])
	require.Equal(t, channel, msg["channel"])
	require.Eventually(t, func() bool { return hub.subscriberCount(channel) > 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_ConnectionEstablished(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])
	assert.Eventually(t, func() bool { return hub.ActiveConnections() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishToSessionChannel(t *testing.T) {
	hub, server := setupTestHub(t)
	conn1 := connectWS(t, server)
	conn2 := connectWS(t, server)
	readJSON(t, conn1)
	readJSON(t, conn2)

	subscribeWS(t, hub, conn1, SessionChannel("s-1"))
	subscribeWS(t, hub, conn2, SessionChannel("s-2"))

	hub.Publish("s-1", MessageDeltaPayload{MessageID: "m1", Delta: "Hel", Content: "Hel"})
	hub.Publish("s-2", TurnErrorPayload{Message: "boom"})

	msg1 := readJSON(t, conn1)
	assert.Equal(t, TypeMessageDelta, msg1["type"])
	assert.Equal(t, "s-1", msg1["session_id"])
	assert.Equal(t, "Hel", msg1["data"].(map[string]any)["delta"])

	msg2 := readJSON(t, conn2)
	assert.Equal(t, TypeTurnError, msg2["type"])
	assert.Equal(t, "boom", msg2["data"].(map[string]any)["message"])
}

func TestHub_GlobalChannel(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)
	subscribeWS(t, hub, conn, GlobalChannel)

	hub.Publish("", BalanceFramePayload{Value: 850, Final: true})

	msg := readJSON(t, conn)
	assert.Equal(t, TypeBalanceFrame, msg["type"])
	assert.Equal(t, 850.0, msg["data"].(map[string]any)["value"])
}

func TestHub_Unsubscribe(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)
	channel := SessionChannel("s-1")
	subscribeWS(t, hub, conn, channel)

	writeJSON(t, conn, ClientMessage{Action: "unsubscribe", Channel: channel})
	assert.Eventually(t, func() bool { return hub.subscriberCount(channel) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_PingPongAndErrors(t *testing.T) {
	_, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "ping"})
	assert.Equal(t, "pong", readJSON(t, conn)["type"])

	writeJSON(t, conn, ClientMessage{Action: "subscribe"})
	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["message"], "channel is required")

	writeJSON(t, conn, ClientMessage{Action: "catchup", Channel: "x"})
	assert.Equal(t, "error", readJSON(t, conn)["type"])
}

func TestHub_DisconnectCleansUpSubscriptions(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)
	channel := SessionChannel("s-1")
	subscribeWS(t, hub, conn, channel)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	assert.Eventually(t, func() bool {
		return hub.ActiveConnections() == 0 && hub.subscriberCount(channel) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_InProcessSubscribers(t *testing.T) {
	hub := NewHub(0, nil)

	var mu sync.Mutex
	var got []string
	unsubscribe := hub.Subscribe(func(n Notification) {
		mu.Lock()
		got = append(got, n.Type+"@"+n.SessionID)
		mu.Unlock()
	})

	hub.Publish("s-1", ThinkingPayload{Visible: true})
	hub.Publish("s-1", TurnDonePayload{})
	unsubscribe()
	hub.Publish("s-1", TurnDonePayload{})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{TypeThinking + "@s-1", TypeTurnDone + "@s-1"}, got)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)
	channel := SessionChannel("s-1")
	subscribeWS(t, hub, conn, channel)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("s-1", StatusPayload{Text: "working"})
		}()
	}
	wg.Wait()

	received := 0
	for i := 0; i < 20; i++ {
		readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _, err := conn.Read(readCtx)
		readCancel()
		if err != nil {
			break
		}
		received++
	}
	assert.Equal(t, 20, received)
}
