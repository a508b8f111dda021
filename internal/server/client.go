package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pawhaven/pawchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// CloseUnauthorized is sent when a connect attempt fails authorization,
// so clients can tell a rejection apart from a network drop.
const CloseUnauthorized = 4401

// Client is one live socket connection, bound to exactly one user and one
// scope for its lifetime.
type Client struct {
	id       string
	conn     *websocket.Conn
	log      *log.Logger
	user     types.User
	scope    Scope
	send     chan *ServerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, scope Scope, conn *websocket.Conn, l *log.Logger) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		log:   l,
		user:  user,
		scope: scope,
		send:  make(chan *ServerEvent, 256),
		stop:  make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for connection %s", c.id)
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeEvent(event)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// queueEvent enqueues an outbound event without blocking. A connection
// whose send buffer is full simply misses the event; it must reload
// history over REST.
func (c *Client) queueEvent(event *ServerEvent) bool {
	select {
	case c.send <- event:
	default:
		c.log.Printf("send buffer full for connection %s, dropping event", c.id)
		return false
	}

	return true
}

func serializeEvent(event *ServerEvent) ([]byte, error) {
	return json.Marshal(event)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
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

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
