package types

import (
	"time"
)

const (
	ContentTypeText = "text"

	ConversationPending  = "pending"
	ConversationAccepted = "accepted"
	ConversationClosed   = "closed"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	IsAdmin      bool      `json:"is_admin,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	Title      string    `json:"title"`
	Members    []User    `json:"members,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Conversation is a lighter chat scope tied to a single pet case. It
// carries an approval lifecycle (pending/accepted/closed) and is never
// hard-deleted.
type Conversation struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	RequesterId int       `json:"requester_id"`
	PetRef      string    `json:"pet_ref,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type Attachment struct {
	Url  string `json:"url"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Message is the wire form of a stored chat message. Sender is nil for
// system messages. Once IsDeleted is set the content is blanked on read
// but the record itself is retained.
type Message struct {
	Id             int64       `json:"id"`
	RoomId         string      `json:"room_id,omitempty"`
	ConversationId string      `json:"conversation_id,omitempty"`
	Sender         *User       `json:"sender"`
	Content        string      `json:"content"`
	ContentType    string      `json:"content_type"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	IsDeleted      bool        `json:"is_deleted"`
	CreatedAt      time.Time   `json:"created_at"`
}
