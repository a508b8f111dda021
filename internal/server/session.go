package server

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pawhaven/pawchat/internal/stats"
)

// SessionHandler runs the per-connection state machine: resolve on
// connect, register, relay inbound events, unregister on close. Each
// connection gets a read loop (the caller's goroutine) and a write pump.
type SessionHandler struct {
	log      *log.Logger
	resolver *Resolver
	registry *Registry
	chat     *ChatService
	stats    stats.StatsProvider
}

func NewSessionHandler(logger *log.Logger, resolver *Resolver, registry *Registry, chat *ChatService, su stats.StatsProvider) *SessionHandler {
	su.RegisterMetric("NumConnections")
	su.RegisterMetric("NumScopes")

	return &SessionHandler{
		log:      logger,
		resolver: resolver,
		registry: registry,
		chat:     chat,
		stats:    su,
	}
}

// HandleConnection drives an upgraded socket through its lifecycle. It
// blocks until the connection closes. A failed resolve closes the socket
// with CloseUnauthorized before any registration happens.
func (h *SessionHandler) HandleConnection(conn *websocket.Conn, kind ScopeKind, externalId, token string) {
	user, scope, err := h.resolver.Resolve(kind, externalId, token)
	if err != nil {
		h.log.Printf("rejecting connection to %s %q: %v", kind, externalId, err)
		h.closeUnauthorized(conn)
		return
	}

	client := NewClient(user, scope, conn, h.log)

	if newScope := h.registry.Register(scope.Key(), client); newScope {
		h.stats.Incr("NumScopes")
	}
	h.stats.Incr("NumConnections")

	go client.Write()
	h.readLoop(client)
}

func (h *SessionHandler) closeUnauthorized(conn *websocket.Conn) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(CloseUnauthorized, "unauthorized")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		h.log.Println("write close frame:", err)
	}
	conn.Close()
}

func (h *SessionHandler) readLoop(c *Client) {
	defer func() {
		c.conn.Close()
		c.stopClient()

		if removed, scopeEmptied := h.registry.Unregister(c); removed {
			h.stats.Decr("NumConnections")
			if scopeEmptied {
				h.stats.Decr("NumScopes")
			}
		}
		h.log.Printf("read exiting for connection %s", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		h.handleEvent(c, raw)
	}
}

// handleEvent dispatches one inbound frame. Malformed events are logged
// and dropped; they never crash the connection.
func (h *SessionHandler) handleEvent(c *Client, raw []byte) {
	var event ClientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Printf("dropping unparseable event from connection %s: %v", c.id, err)
		return
	}

	switch event.Type {
	case TypeSendMessage:
		params := CreateMessageParams{
			Content:     event.Content,
			ContentType: event.ContentType,
			Attachment:  event.Attachments,
		}

		if _, err := h.chat.CreateMessage(c.scope, c.user, params); err != nil {
			// the sender alone learns about the failure; nothing is
			// broadcast to the rest of the scope
			h.log.Printf("send_message from connection %s failed: %v", c.id, err)
			if !errors.Is(err, ErrInvalidMessage) {
				c.queueEvent(ErrMessageNotSent())
			}
		}
	default:
		h.log.Printf("dropping event with unknown type %q from connection %s", event.Type, c.id)
	}
}
