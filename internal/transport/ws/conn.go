package ws

import (
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/gorilla/websocket"
)

// connState is the per-connection lifecycle:
// connecting -> authenticated -> subscribed -> closed.
type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateSubscribed
	stateClosed
)

// Conn wraps one websocket connection. Outbound events go through a
// bounded buffer drained by a dedicated write loop; a consumer that
// cannot keep up is disconnected instead of stalling the broadcaster.
type Conn struct {
	ws       *websocket.Conn
	userID   int64
	tenantID int64

	send   chan Event
	closed chan struct{}

	mu    sync.Mutex
	state connState
	slow  bool
}

func newConn(ws *websocket.Conn, userID, tenantID int64, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Conn{
		ws:       ws,
		userID:   userID,
		tenantID: tenantID,
		send:     make(chan Event, sendBuffer),
		closed:   make(chan struct{}),
		state:    stateAuthenticated,
	}
}

func (c *Conn) UserID() int64   { return c.userID }
func (c *Conn) TenantID() int64 { return c.tenantID }

// enqueue places an event on the outbound buffer without blocking.
// A full buffer marks the connection as a slow consumer and closes it.
func (c *Conn) enqueue(ev Event) error {
	select {
	case <-c.closed:
		return domain.ErrSlowConsumer
	case c.send <- ev:
		return nil
	default:
		c.mu.Lock()
		c.slow = true
		c.mu.Unlock()
		c.Close()
		return domain.ErrSlowConsumer
	}
}

// SlowConsumer reports whether the connection was closed for falling
// behind on its outbound buffer.
func (c *Conn) SlowConsumer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slow
}

func (c *Conn) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// writeLoop drains the outbound buffer onto the socket and keeps the
// connection alive with pings. It owns all writes to the socket.
func (c *Conn) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	already := c.state == stateClosed
	c.state = stateClosed
	c.mu.Unlock()
	if already {
		return
	}
	close(c.closed)
	_ = c.ws.Close()
}
