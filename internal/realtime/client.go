package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blogloom/realtime/internal/types"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

type Client struct {
	conn *websocket.Conn
	rt   *Server
	log  *log.Logger
	user types.User
	// followers is captured once at connect time and reused for the
	// offline fan-out on disconnect.
	followers []string
	send      chan *ServerEvent
	stop      chan struct{}
	// alive is cleared by the liveness monitor each sweep and set again
	// by the pong handler. A client found cleared on the next sweep is
	// evicted.
	alive        atomic.Bool
	teardownOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, rt *Server, l *log.Logger) *Client {
	c := &Client{
		conn: conn,
		rt:   rt,
		log:  l,
		user: user,
		send: make(chan *ServerEvent, sendBufferSize),
		stop: make(chan struct{}),
	}
	c.alive.Store(true)
	return c
}

func (c *Client) Write() {
	defer func() {
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeEvent(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.rt.DeRegisterClient(c)
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(appData string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.rt.dispatch(c, raw)
	}
}

// queueEvent attempts to enqueue an event for delivery and drops it if
// the client's buffer is full.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Println("failed to queue event, channel is full")
		return false
	}

	return true
}

func serializeEvent(ev *ServerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// ping writes a transport-level ping. WriteControl is safe to call
// concurrently with the write pump.
func (c *Client) ping() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// terminate force-closes the transport, unblocking the read pump.
func (c *Client) terminate() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) stopClient() {
	close(c.stop)
}
