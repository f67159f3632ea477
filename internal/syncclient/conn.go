// Package syncclient keeps a local copy of a board in step with the realtime
// channel.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("realtime connection is not open")

// Message is one server event.
type Message struct {
	Event         string          `json:"event"`
	Data          json.RawMessage `json:"data,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

type Handler func(Message)

// Conn is the single realtime connection of a client session. Build it once
// and hand it to whatever needs to emit or listen.
type Conn struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    logrus.FieldLogger

	mu       sync.Mutex
	ws       *websocket.Conn
	done     chan struct{}
	writeMu  sync.Mutex
	handleMu sync.RWMutex
	handlers map[string][]Handler
}

// NewConn prepares a connection to url, a ws:// or wss:// endpoint.
func NewConn(url, token string, log logrus.FieldLogger) *Conn {
	return &Conn{
		url:      url,
		token:    token,
		dialer:   websocket.DefaultDialer,
		log:      log,
		handlers: make(map[string][]Handler),
	}
}

// Dial opens the connection and starts dispatching events to handlers.
func (c *Conn) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		return nil
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("realtime handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to dial realtime channel: %w", err)
	}

	c.ws = ws
	c.done = make(chan struct{})
	go c.readLoop(ws, c.done)
	return nil
}

// On registers h for event. Handlers run on the read goroutine in arrival order.
func (c *Conn) On(event string, h Handler) {
	c.handleMu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.handleMu.Unlock()
}

// Emit sends one event frame.
func (c *Conn) Emit(event, correlationID string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Message{Event: event, Data: raw, CorrelationID: correlationID})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// Join asks the hub for board's events.
func (c *Conn) Join(board string) error {
	return c.Emit("join-board", "", board)
}

// Leave stops board's events.
func (c *Conn) Leave(board string) error {
	return c.Emit("leave-board", "", board)
}

// Done is closed when the read loop stops. It is nil before Dial.
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	c.writeMu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return ws.Close()
}

func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Warn("realtime connection lost")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithError(err).Warn("unable to parse realtime event")
			continue
		}

		c.handleMu.RLock()
		handlers := append([]Handler(nil), c.handlers[msg.Event]...)
		c.handleMu.RUnlock()
		for _, h := range handlers {
			h(msg)
		}
	}
}
