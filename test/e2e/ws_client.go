package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/codeready-toolchain/storeassist/pkg/events"
)

// WSEvent is one frame received on the notification feed. Notifications
// carry SessionID and Data; control frames (connection.established,
// subscription.confirmed, pong) carry their fields in Fields.
type WSEvent struct {
	Type     string
	Raw      json.RawMessage
	Fields   map[string]any
	Received time.Time
}

// SessionID returns the session the event belongs to, if any.
func (e WSEvent) SessionID() string {
	id, _ := e.Fields["session_id"].(string)
	return id
}

// Data returns the notification payload as a map.
func (e WSEvent) Data() map[string]any {
	d, _ := e.Fields["data"].(map[string]any)
	return d
}

// WSClient reads the notification feed in the background and keeps every
// frame for assertions.
type WSClient struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	events []WSEvent
	// arrived is closed and replaced whenever a frame is appended.
	arrived chan struct{}
}

// WSConnect dials wsURL and starts the reader.
func WSConnect(ctx context.Context, wsURL string) (*WSClient, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial notification feed: %w", err)
	}
	clientCtx, cancel := context.WithCancel(ctx)
	c := &WSClient{
		conn:    conn,
		ctx:     clientCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		arrived: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Subscribe asks the hub for a channel's notifications.
func (c *WSClient) Subscribe(channel string) error {
	return c.send(events.ClientMessage{Action: "subscribe", Channel: channel})
}

// Unsubscribe stops a channel's notifications.
func (c *WSClient) Unsubscribe(channel string) error {
	return c.send(events.ClientMessage{Action: "unsubscribe", Channel: channel})
}

func (c *WSClient) send(msg events.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// WaitForEvent returns the first collected event matching match, waiting up
// to timeout for it to arrive.
func (c *WSClient) WaitForEvent(match func(WSEvent) bool, timeout time.Duration) (*WSEvent, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	seen := 0
	for {
		c.mu.Lock()
		for ; seen < len(c.events); seen++ {
			if match(c.events[seen]) {
				evt := c.events[seen]
				c.mu.Unlock()
				return &evt, nil
			}
		}
		arrived := c.arrived
		c.mu.Unlock()

		select {
		case <-arrived:
		case <-c.done:
			return nil, fmt.Errorf("feed closed after %d events", seen)
		case <-deadline.C:
			return nil, fmt.Errorf("timeout waiting for event (collected %d events)", seen)
		}
	}
}

// WaitForEventType waits for an event with the given type.
func (c *WSClient) WaitForEventType(eventType string, timeout time.Duration) (*WSEvent, error) {
	return c.WaitForEvent(func(e WSEvent) bool { return e.Type == eventType }, timeout)
}

// WaitForTurnDone waits for the turn.done event of the given session.
func (c *WSClient) WaitForTurnDone(sessionID string, timeout time.Duration) (*WSEvent, error) {
	return c.WaitForEvent(func(e WSEvent) bool {
		return e.Type == events.TypeTurnDone && e.SessionID() == sessionID
	}, timeout)
}

// Events returns a snapshot of all collected events.
func (c *WSClient) Events() []WSEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WSEvent(nil), c.events...)
}

// EventsByType returns the collected events of one type, in arrival order.
func (c *WSClient) EventsByType(eventType string) []WSEvent {
	var out []WSEvent
	for _, e := range c.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Close drops the connection and waits for the reader to exit.
func (c *WSClient) Close() error {
	c.cancel()
	_ = c.conn.CloseNow()
	<-c.done
	return nil
}

func (c *WSClient) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			continue
		}
		evt := WSEvent{Raw: data, Fields: fields, Received: time.Now()}
		evt.Type, _ = fields["type"].(string)

		c.mu.Lock()
		c.events = append(c.events, evt)
		close(c.arrived)
		c.arrived = make(chan struct{})
		c.mu.Unlock()
	}
}
