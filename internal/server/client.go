package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// outboundBuffer is the per-client frame backlog. A client that falls this
// far behind is dropped rather than allowed to stall the broadcast path.
const outboundBuffer = 256

var (
	errClientClosed     = errors.New("client closed")
	errClientBacklogged = errors.New("client send backlog full")
)

// wsClient adapts one downstream WebSocket connection to the hub's Client
// interface. Send only enqueues; a single writer goroutine owns the socket,
// so a stalled peer never blocks the hub or the action handler.
type wsClient struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, writeTimeout time.Duration) *wsClient {
	c := &wsClient{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		out:          make(chan []byte, outboundBuffer),
		done:         make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsClient) ID() string { return c.id }

// Send enqueues one frame without blocking. A full backlog returns an error
// so the hub drops the client.
func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errClientBacklogged
	}
}

// SendJSON marshals and sends one frame.
func (c *wsClient) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// writeLoop drains the outbound queue onto the socket. The first failed
// write tears the client down.
func (c *wsClient) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Close stops the writer and closes the connection once.
func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		// WriteControl is safe concurrently with the writer goroutine.
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	})
	return nil
}
