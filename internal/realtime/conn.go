package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	jobQueueSize   = 64
)

// job is persistence work queued behind a broadcast.
type job func(ctx context.Context)

// Conn is one authenticated socket. Inbound events are dispatched in read
// order and their persistence jobs run one at a time in the same order.
type Conn struct {
	id       string
	hub      *Hub
	ws       *websocket.Conn
	identity auth.Identity
	log      logrus.FieldLogger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	jobs      chan job
	limiter   *rate.Limiter
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Identity() auth.Identity { return c.identity }

// Send queues msg without blocking. A connection whose buffer is full is
// closed instead of stalling the broadcaster.
func (c *Conn) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("send buffer full, dropping connection")
		c.Close()
		return false
	}
}

// Close stops the pumps and removes the connection from every room.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		rooms := c.hub.release(c)
		c.log.WithField("rooms", len(rooms)).Debug("realtime connection closed")
	})
}

func (c *Conn) emit(event, correlationID string, payload interface{}) {
	msg, err := Encode(event, correlationID, payload)
	if err != nil {
		c.log.WithError(err).Error("failed to encode outbound event")
		return
	}
	c.Send(msg)
}

func (c *Conn) emitError(event, correlationID, code, message string) {
	c.emit(EventError, correlationID, ErrorPayload{Code: code, Message: message, Event: event})
}

func (c *Conn) enqueue(j job) {
	c.jobs <- j
}

func (c *Conn) readPump() {
	defer func() {
		c.Close()
		close(c.jobs)
		c.hub.wg.Done()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.WithError(err).Debug("realtime read failed")
			}
			return
		}

		frame, err := ParseFrame(data)
		if err != nil {
			c.emitError(frame.Event, frame.CorrelationID, apierrors.ErrCodeInvalidInput, err.Error())
			continue
		}
		if !c.limiter.Allow() {
			c.emitError(frame.Event, frame.CorrelationID, apierrors.ErrCodeRateLimited, "too many events, slow down")
			continue
		}
		c.hub.dispatch(c, frame)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.wg.Done()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// persistWorker drains the job queue until readPump closes it, so jobs queued
// before a disconnect still reach the store.
func (c *Conn) persistWorker() {
	defer c.hub.wg.Done()
	for j := range c.jobs {
		ctx, cancel := c.hub.storeContext()
		j(ctx)
		cancel()
	}
}
