package server

import (
	"net/http"
	"time"

	"github.com/pawhaven/pawchat/internal/types"
)

const (
	// inbound event types
	TypeSendMessage = "send_message"

	// outbound event names
	EventMessageCreated = "message_created"
	EventMessageDeleted = "message_deleted"
	EventError          = "error"
)

// ClientEvent is an inbound frame from a connected client.
type ClientEvent struct {
	Type        string            `json:"type"`
	Content     string            `json:"content"`
	ContentType string            `json:"content_type,omitempty"`
	Attachments *types.Attachment `json:"attachments,omitempty"`
}

// ServerEvent is an outbound frame pushed to connected clients.
type ServerEvent struct {
	Event     string         `json:"event"`
	Message   *types.Message `json:"message,omitempty"`
	MessageId int64          `json:"message_id,omitempty"`
	Error     *ErrorPayload  `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorPayload carries the error body of an EventError frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func MessageCreated(msg *types.Message) *ServerEvent {
	return &ServerEvent{
		Event:     EventMessageCreated,
		Message:   msg,
		Timestamp: Now(),
	}
}

func MessageDeleted(messageId int64) *ServerEvent {
	return &ServerEvent{
		Event:     EventMessageDeleted,
		MessageId: messageId,
		Timestamp: Now(),
	}
}

func ErrMessageNotSent() *ServerEvent {
	return &ServerEvent{
		Event: EventError,
		Error: &ErrorPayload{
			Code:    http.StatusInternalServerError,
			Message: "message not sent",
		},
		Timestamp: Now(),
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
